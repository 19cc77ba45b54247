package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"command first", []string{"create-user", "-name", "Ann"}, []string{"create-user", "-name", "Ann"}},
		{"config before", []string{"-c", "conf.json", "create-user"}, []string{"create-user"}},
		{"inline value", []string{"--config=conf.json", "create-user"}, []string{"create-user"}},
		{"no command", []string{"-d", "memory"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandArgs(tt.in))
		})
	}
}
