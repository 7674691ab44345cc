package llm

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

var statusCodeRe = regexp.MustCompile(`status(?:\s+code)?[:=\s]+(\d{3})`)

type failureClass int

const (
	failureTimeout failureClass = iota + 1
	failureRateLimit
	failureServer
	failureClient
)

func (f failureClass) String() string {
	switch f {
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	case failureClient:
		return "client"
	default:
		return "unknown"
	}
}

func (f failureClass) retryable() bool {
	return f == failureTimeout || f == failureRateLimit || f == failureServer
}

func classifyStatus(code int) failureClass {
	switch {
	case code == 429:
		return failureRateLimit
	case code >= 500:
		return failureServer
	case code == 408:
		return failureTimeout
	default:
		return failureClient
	}
}

func classifyTransportError(err error) failureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return failureClient
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return classifyStatus(apiErr.StatusCode)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}

	msg := strings.ToLower(err.Error())
	if m := statusCodeRe.FindStringSubmatch(msg); len(m) == 2 {
		switch {
		case m[1] == "429":
			return failureRateLimit
		case strings.HasPrefix(m[1], "5"):
			return failureServer
		case strings.HasPrefix(m[1], "4"):
			return failureClient
		}
	}
	switch {
	case strings.Contains(msg, "rate limit"):
		return failureRateLimit
	case strings.Contains(msg, "overloaded"), strings.Contains(msg, "server error"):
		return failureServer
	default:
		return failureServer
	}
}
