package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errInputClosed = errors.New("input closed")

// prompt writes label and reads one trimmed line from stdin.
func (c *cli) prompt(label string) (string, error) {
	if c.in == nil {
		c.in = bufio.NewReader(c.stdin)
	}
	fmt.Fprint(c.stdout, label)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.stdout)
			return "", errInputClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// orPrompt returns v, or asks for it when empty.
func (c *cli) orPrompt(v, label string) (string, error) {
	if v != "" {
		return v, nil
	}
	return c.prompt(label)
}
