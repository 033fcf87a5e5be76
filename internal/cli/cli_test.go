package cli

import (
	"bytes"
	"encoding/json"
	"testing"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

func decodeData(t *testing.T, out []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(out, &payload); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	return payload
}

func TestItemsJoinThenList(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	out, errOut, err := runCLI(t, []string{"--dir", dir, "--user", "u1", "items", "join", "Tripod", "--category", "Camera", "--note", "carbon"})
	if err != nil {
		t.Fatalf("join: %v\nstderr:\n%s", err, errOut)
	}
	payload := decodeData(t, out)
	if payload["created"] != true {
		t.Fatalf("join should create, got %v", payload)
	}

	out, errOut, err = runCLI(t, []string{"--dir", dir, "--user", "u1", "items", "list", "--context", "home"})
	if err != nil {
		t.Fatalf("list: %v\nstderr:\n%s", err, errOut)
	}
	payload = decodeData(t, out)
	data, _ := payload["data"].(map[string]any)
	display, _ := data["displayItems"].([]any)
	if len(display) != 1 {
		t.Fatalf("home list: want 1 item, got %v", data)
	}
	first, _ := display[0].(map[string]any)
	if first["name"] != "Tripod" {
		t.Fatalf("home list: got %v", first)
	}
}

func TestItemsJoinRequiresIdentity(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, _, err := runCLI(t, []string{"--dir", dir, "items", "join", "Tripod", "--category", "Camera"})
	if err == nil {
		t.Fatal("join without identity should fail")
	}
}

func TestItemsLeaveRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	out, _, err := runCLI(t, []string{"--dir", dir, "--user", "u1", "items", "join", "Mouse", "--category", "Desk"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	payload := decodeData(t, out)
	data, _ := payload["data"].(map[string]any)
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatalf("join returned no id: %v", payload)
	}

	out, _, err = runCLI(t, []string{"--dir", dir, "--user", "u1", "items", "leave", id})
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	payload = decodeData(t, out)
	data, _ = payload["data"].(map[string]any)
	if data["owners"] != float64(0) {
		t.Fatalf("leave: want owners 0, got %v", data)
	}
}

func TestStatsCountsContextItems(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for _, args := range [][]string{
		{"--dir", dir, "--user", "u1", "items", "join", "Tripod", "--category", "Camera"},
		{"--dir", dir, "--user", "u2", "items", "join", "Mouse", "--category", "Desk"},
	} {
		if _, errOut, err := runCLI(t, args); err != nil {
			t.Fatalf("join: %v\nstderr:\n%s", err, errOut)
		}
	}

	out, _, err := runCLI(t, []string{"--dir", dir, "stats", "--context", "explore"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	payload := decodeData(t, out)
	data, _ := payload["data"].(map[string]any)
	if data["totalItems"] != float64(2) || data["totalCategories"] != float64(2) {
		t.Fatalf("stats: got %v", data)
	}
}

func TestSeedIsGated(t *testing.T) {
	dir := t.TempDir()

	// Outside dev mode, seeding needs --force.
	if _, _, err := runCLI(t, []string{"--dir", dir, "seed"}); err == nil {
		t.Fatal("seed without dev mode or --force should fail")
	}

	if _, errOut, err := runCLI(t, []string{"--dir", dir, "seed", "--force"}); err != nil {
		t.Fatalf("seed --force: %v\nstderr:\n%s", err, errOut)
	}

	// A second run hits the non-empty guard.
	if _, _, err := runCLI(t, []string{"--dir", dir, "seed", "--force"}); err == nil {
		t.Fatal("seed against non-empty store should fail")
	}

	out, _, err := runCLI(t, []string{"--dir", dir, "items", "list", "--context", "explore"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	payload := decodeData(t, out)
	data, _ := payload["data"].(map[string]any)
	display, _ := data["displayItems"].([]any)
	if len(display) != 4 {
		t.Fatalf("want 4 seeded items, got %d", len(display))
	}
}

func TestLoginRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	out, errOut, err := runCLI(t, []string{"--dir", dir, "login", "alice@example.com"})
	if err != nil {
		t.Fatalf("login begin: %v\nstderr:\n%s", err, errOut)
	}
	payload := decodeData(t, out)
	data, _ := payload["data"].(map[string]any)
	code, _ := data["code"].(string)
	if code == "" {
		t.Fatalf("login begin returned no code: %v", payload)
	}

	out, _, err = runCLI(t, []string{"--dir", dir, "login", "--code", code})
	if err != nil {
		t.Fatalf("login complete: %v", err)
	}
	payload = decodeData(t, out)
	data, _ = payload["data"].(map[string]any)
	if data["email"] != "alice@example.com" {
		t.Fatalf("login complete: got %v", data)
	}

	out, _, err = runCLI(t, []string{"--dir", dir, "whoami"})
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	payload = decodeData(t, out)
	if payload["guest"] == true {
		t.Fatalf("whoami after login reported guest: %v", payload)
	}

	if _, _, err := runCLI(t, []string{"--dir", dir, "logout"}); err != nil {
		t.Fatalf("logout: %v", err)
	}
	out, _, err = runCLI(t, []string{"--dir", dir, "whoami"})
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	payload = decodeData(t, out)
	if payload["guest"] != true {
		t.Fatalf("whoami after logout: %v", payload)
	}
}

func TestEventsListRecordsMutations(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, _, err := runCLI(t, []string{"--dir", dir, "--user", "u1", "items", "join", "Lamp", "--category", "Desk"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	out, _, err := runCLI(t, []string{"--dir", dir, "events", "list"})
	if err != nil {
		t.Fatalf("events list: %v", err)
	}
	payload := decodeData(t, out)
	evs, _ := payload["data"].([]any)
	if len(evs) != 1 {
		t.Fatalf("want 1 event, got %v", payload)
	}
	ev, _ := evs[0].(map[string]any)
	if ev["type"] != "item.create" {
		t.Fatalf("event: got %v", ev)
	}
}
