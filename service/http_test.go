package service

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	meshErrors "github.com/vinayprograms/meshkit/errors"
)

// echoService answers every verb with a canned reflection of its input.
type echoService struct{}

func (echoService) Ask(_ context.Context, query string, _ map[string]interface{}) (interface{}, error) {
	if strings.Contains(query, "fail") {
		return nil, fmt.Errorf("asked to fail")
	}
	return "echo: " + query, nil
}

func (echoService) Tell(format string, data interface{}) string {
	switch format {
	case "json":
		return RenderJSON(data)
	default:
		return Fallback(data)
	}
}

func (echoService) Do(_ context.Context, action string, _ map[string]interface{}) (interface{}, error) {
	if strings.Contains(action, "panic") {
		panic("deliberate panic")
	}
	return "did: " + action, nil
}

func startTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	srv := NewServer(ServerConfig{Name: "echo", Service: echoService{}})
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	host, portStr, err := net.SplitHostPort(srv.ln.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return srv, NewClient("echo", host, port, 2*time.Second)
}

func TestServerClient_Ask(t *testing.T) {
	_, client := startTestServer(t)

	result, err := client.Ask(context.Background(), "what is up", nil)
	if err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	if result != "echo: what is up" {
		t.Errorf("result = %v, want echo", result)
	}
}

func TestServerClient_AskError(t *testing.T) {
	_, client := startTestServer(t)

	_, err := client.Ask(context.Background(), "please fail", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if meshErrors.Code(err) != meshErrors.ErrCodeCallFailed {
		t.Errorf("Code = %v, want CALL_FAILED", meshErrors.Code(err))
	}
	if meshErrors.ServiceName(err) != "echo" {
		t.Errorf("ServiceName = %q, want echo", meshErrors.ServiceName(err))
	}
}

func TestServerClient_Tell(t *testing.T) {
	_, client := startTestServer(t)

	out := client.Tell("text", "hello")
	if out != "hello" {
		t.Errorf("Tell = %q, want hello", out)
	}

	// Unknown format must not fail
	out = client.Tell("discord", 42)
	if out == "" {
		t.Error("Tell with unknown format should return fallback, not empty")
	}
}

func TestServerClient_Do(t *testing.T) {
	_, client := startTestServer(t)

	result, err := client.Do(context.Background(), "sync tournaments", nil)
	if err != nil {
		t.Fatalf("Do error: %v", err)
	}
	if result != "did: sync tournaments" {
		t.Errorf("result = %v", result)
	}
}

func TestServerClient_PanicRecovered(t *testing.T) {
	_, client := startTestServer(t)

	_, err := client.Do(context.Background(), "panic now", nil)
	if err == nil {
		t.Fatal("expected error from panicking callee")
	}
	if meshErrors.Code(err) != meshErrors.ErrCodeCallFailed {
		t.Errorf("Code = %v, want CALL_FAILED", meshErrors.Code(err))
	}
	// The server must survive the panic
	if _, err := client.Ask(context.Background(), "still alive", nil); err != nil {
		t.Errorf("server should survive callee panic: %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	client := NewClient("ghost", "127.0.0.1", 1, 200*time.Millisecond)

	_, err := client.Ask(context.Background(), "anyone there", nil)
	if err == nil {
		t.Fatal("expected error for unreachable host")
	}
	if meshErrors.Code(err) != meshErrors.ErrCodeCallFailed {
		t.Errorf("Code = %v, want CALL_FAILED", meshErrors.Code(err))
	}

	// Tell degrades to a string, never an error
	out := client.Tell("text", "x")
	if out == "" {
		t.Error("Tell against unreachable host should return fallback text")
	}
}

func TestFuncs_NilMembers(t *testing.T) {
	var f Funcs

	if _, err := f.Ask(context.Background(), "q", nil); err == nil {
		t.Error("nil AskFunc should error")
	}
	if _, err := f.Do(context.Background(), "a", nil); err == nil {
		t.Error("nil DoFunc should error")
	}
	if got := f.Tell("json", 7); got != "7" {
		t.Errorf("nil TellFunc should fall back, got %q", got)
	}
}

func TestRenderJSON(t *testing.T) {
	out := RenderJSON(map[string]int{"a": 1})
	if !strings.Contains(out, "\"a\": 1") {
		t.Errorf("RenderJSON = %q", out)
	}

	// Unmarshalable values degrade to fallback
	out = RenderJSON(func() {})
	if out == "" {
		t.Error("RenderJSON of unmarshalable value should fall back")
	}
}
