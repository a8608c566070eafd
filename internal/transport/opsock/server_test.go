package opsock

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func startTestServer(t *testing.T) (*Server, *hub.DataHub, *hub.Events, string, *Authenticator) {
	t.Helper()
	h := hub.New()
	ev := hub.NewEvents()
	auth, err := NewAuthenticator(testSecret)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	sockPath := filepath.Join(t.TempDir(), "operator.sock")
	srv := NewServer(sockPath, 1, h, ev, auth, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.ListenAndServe(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", sockPath); err == nil {
			conn.Close()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	return srv, h, ev, sockPath, auth
}

func roundTrip(t *testing.T, sockPath string, req Request) Response {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if _, err := conn.Write(body); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var resp Response
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCommandWithoutTokenIsRejected(t *testing.T) {
	_, _, _, sockPath, _ := startTestServer(t)

	resp := roundTrip(t, sockPath, Request{Cmd: "status"})
	if resp.OK {
		t.Fatal("expected unauthenticated status request to be rejected")
	}
}

func TestCommandWritesOperatorCommandToHub(t *testing.T) {
	_, h, _, sockPath, auth := startTestServer(t)
	token, err := auth.Mint("test-operator", time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	resp := roundTrip(t, sockPath, Request{Cmd: "command", Token: token, RequestAutomatic: true, Accelerate: true})
	if !resp.OK {
		t.Fatalf("resp = %+v, want OK", resp)
	}

	got := h.GetOperatorCommand()
	if !got.RequestAutomatic || !got.Accelerate {
		t.Fatalf("GetOperatorCommand() = %+v, want RequestAutomatic and Accelerate set", got)
	}
}

func TestStatusReflectsCurrentState(t *testing.T) {
	_, h, _, sockPath, auth := startTestServer(t)
	h.SetState(hub.VehicleState{Automatic: true})
	token, _ := auth.Mint("test-operator", time.Minute)

	resp := roundTrip(t, sockPath, Request{Cmd: "status", Token: token})
	if !resp.OK || !resp.Automatic || resp.Fault {
		t.Fatalf("resp = %+v, want OK/Automatic=true/Fault=false", resp)
	}
}

func TestListReportsFaultCode(t *testing.T) {
	_, h, ev, sockPath, auth := startTestServer(t)
	h.SetState(hub.VehicleState{Fault: true})
	ev.Signal(hub.FaultThermal)
	token, _ := auth.Mint("test-operator", time.Minute)

	resp := roundTrip(t, sockPath, Request{Cmd: "list", Token: token})
	if !resp.OK || len(resp.Trucks) != 1 {
		t.Fatalf("resp = %+v, want one truck entry", resp)
	}
	if !resp.Trucks[0].Fault || resp.Trucks[0].FaultCode != hub.FaultThermal {
		t.Fatalf("Trucks[0] = %+v, want Fault=true, FaultCode=%d", resp.Trucks[0], hub.FaultThermal)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	_, _, _, sockPath, auth := startTestServer(t)
	token, err := auth.Mint("test-operator", -time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	resp := roundTrip(t, sockPath, Request{Cmd: "status", Token: token})
	if resp.OK {
		t.Fatal("expected expired token to be rejected")
	}
}
