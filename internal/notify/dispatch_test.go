package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"laundry_notifier/internal/logger"
)

// stubChannel records deliveries.
type stubChannel struct {
	name  string
	err   error
	calls int
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Notify(ctx context.Context, title, body string) error {
	s.calls++
	return s.err
}

func testLog() *logger.Logger {
	return logger.Get(logger.ErrorLevel, "")
}

func fixedClock(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 30, hour, 0, 0, 0, time.Local)
	}
}

func TestDispatch_QuietHoursSuppressAllChannels(t *testing.T) {
	quiet, err := ParseQuietHours("22:00", "06:00")
	if err != nil {
		t.Fatalf("ParseQuietHours: %v", err)
	}
	ch := &stubChannel{name: "push"}
	d := NewDispatcher([]Notifier{ch}, quiet, testLog())
	d.now = fixedClock(23)

	if d.Dispatch(context.Background(), "washer finished", "go empty it") {
		t.Fatal("expected suppression at 23:00")
	}
	if ch.calls != 0 {
		t.Errorf("channel invoked %d times, want 0", ch.calls)
	}
}

func TestDispatch_OutsideQuietHoursDelivers(t *testing.T) {
	quiet, err := ParseQuietHours("22:00", "06:00")
	if err != nil {
		t.Fatalf("ParseQuietHours: %v", err)
	}
	push := &stubChannel{name: "push"}
	mail := &stubChannel{name: "email"}
	d := NewDispatcher([]Notifier{push, mail}, quiet, testLog())
	d.now = fixedClock(12)

	if !d.Dispatch(context.Background(), "washer finished", "go empty it") {
		t.Fatal("expected dispatch at 12:00")
	}
	if push.calls != 1 || mail.calls != 1 {
		t.Errorf("calls = push:%d email:%d, want 1 each", push.calls, mail.calls)
	}
}

func TestDispatch_ChannelFailureDoesNotAbortOthers(t *testing.T) {
	bad := &stubChannel{name: "push", err: errors.New("api down")}
	good := &stubChannel{name: "script"}
	d := NewDispatcher([]Notifier{bad, good}, nil, testLog())

	if !d.Dispatch(context.Background(), "dryer finished", "") {
		t.Fatal("dispatch should report delivery attempt")
	}
	if good.calls != 1 {
		t.Errorf("later channel skipped after earlier failure, calls = %d", good.calls)
	}
}

func TestDispatch_NoQuietWindowAlwaysDelivers(t *testing.T) {
	ch := &stubChannel{name: "push"}
	d := NewDispatcher([]Notifier{ch}, nil, testLog())
	d.now = fixedClock(3)

	if !d.Dispatch(context.Background(), "washer finished", "") {
		t.Fatal("nil quiet window must never suppress")
	}
	if ch.calls != 1 {
		t.Errorf("calls = %d, want 1", ch.calls)
	}
}

func TestPushbullet_SendsNote(t *testing.T) {
	var gotToken string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("Access-Token")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPushbullet("tok-123", "laundry")
	p.url = srv.URL

	if err := p.Notify(context.Background(), "washer finished", "go empty it"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotToken != "tok-123" {
		t.Errorf("Access-Token = %q", gotToken)
	}
	for _, want := range []string{`"type":"note"`, `"title":"washer finished"`, `"channel_tag":"laundry"`} {
		if !strings.Contains(string(gotBody), want) {
			t.Errorf("push payload missing %s: %s", want, gotBody)
		}
	}
}

func TestPushbullet_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewPushbullet("bad-token", "")
	p.url = srv.URL

	if err := p.Notify(context.Background(), "t", "b"); err == nil {
		t.Fatal("expected error on 401")
	}
}
