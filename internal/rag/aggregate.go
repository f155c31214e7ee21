package rag

import "strings"

// Aggregate concatenates the stream's fragments in order. An empty stream
// yields "". The first fragment error is returned after the stream is drained.
func Aggregate(stream <-chan Fragment) (string, error) {
	var b strings.Builder
	for f := range stream {
		if f.Err != nil {
			for range stream {
			}
			return "", f.Err
		}
		b.WriteString(f.Text)
	}
	return b.String(), nil
}
