// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/ui/styles"
)

func TestToastManager_NotifyErrorCarriesDiagnostic(t *testing.T) {
	m := NewToastManager()
	err := fmt.Errorf("submit: %w", &completion.APIError{
		Status:  401,
		Message: "Incorrect API key provided",
		Body:    `{"error":{"message":"Incorrect API key provided"}}`,
	})

	if id := m.NotifyError(err); id == 0 {
		t.Fatal("expected a toast id")
	}
	toasts := m.Toasts()
	if len(toasts) != 1 {
		t.Fatalf("expected 1 toast, got %d", len(toasts))
	}
	got := toasts[0]
	if got.Kind != ToastError {
		t.Errorf("expected ToastError, got %d", got.Kind)
	}
	if !strings.Contains(got.Title, "Authentication failed") {
		t.Errorf("unexpected title %q", got.Title)
	}
	if !strings.Contains(got.Detail, "Incorrect API key provided") || !strings.Contains(got.Detail, "401") {
		t.Errorf("detail should include the serialised error, got %q", got.Detail)
	}
}

func TestToastManager_IgnoresCancellation(t *testing.T) {
	m := NewToastManager()
	if id := m.NotifyError(context.Canceled); id != 0 {
		t.Errorf("cancellation should not produce a toast")
	}
	if m.NotifyError(nil) != 0 || m.Len() != 0 {
		t.Error("nil error should not produce a toast")
	}
}

func TestToastManager_ExpiryAndCap(t *testing.T) {
	m := NewToastManager()
	now := time.Now()
	m.now = func() time.Time { return now }

	for i := 0; i < maxToasts+2; i++ {
		m.Info(fmt.Sprintf("toast %d", i))
	}
	if m.Len() != maxToasts {
		t.Fatalf("expected %d toasts, got %d", maxToasts, m.Len())
	}
	if first := m.Toasts()[0].Title; first != fmt.Sprintf("toast %d", maxToasts+1) {
		t.Errorf("newest toast should be first, got %q", first)
	}

	errID := m.NotifyError(fmt.Errorf("boom"))
	now = now.Add(InfoToastDuration)
	remaining := m.Tick()
	if len(remaining) != 1 || remaining[0].ID != errID {
		t.Fatalf("only the error toast should survive, got %+v", remaining)
	}

	m.Dismiss(errID)
	if m.Len() != 0 {
		t.Error("dismiss should remove the toast")
	}
}

func TestRenderToast_TruncatesDetail(t *testing.T) {
	theme := styles.NewTheme("dark")
	detail := strings.Repeat("line\n", maxDetailLines+5)
	out := RenderToast(theme, Toast{Kind: ToastError, Title: "oops", Detail: detail}, 40)
	if !strings.Contains(out, "...") {
		t.Error("long detail should be cut")
	}
	if !strings.Contains(out, "oops") {
		t.Error("title missing")
	}
}
