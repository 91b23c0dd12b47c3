package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{name: "default timeout", timeout: 0, want: 5 * time.Second},
		{name: "custom timeout", timeout: 10 * time.Second, want: 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.timeout).checkTimeout; got != tt.want {
				t.Errorf("checkTimeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegisterAndList(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("store", func(context.Context) error { return nil }, true)
	c.RegisterCheck("kernel", func(context.Context) error { return nil }, false)
	c.RegisterCheck("journal", func(context.Context) error { return nil }, false)
	c.UnregisterCheck("journal")

	if got := c.ListChecks(); !reflect.DeepEqual(got, []string{"kernel", "store"}) {
		t.Errorf("ListChecks() = %v", got)
	}
}

func TestCheckReadiness(t *testing.T) {
	fail := func(context.Context) error { return errors.New("down") }
	ok := func(context.Context) error { return nil }

	tests := []struct {
		name     string
		critical CheckFunc
		advisory CheckFunc
		want     string
	}{
		{name: "all healthy", critical: ok, advisory: ok, want: StatusReady},
		{name: "advisory failure", critical: ok, advisory: fail, want: StatusDegraded},
		{name: "critical failure", critical: fail, advisory: ok, want: StatusUnhealthy},
		{name: "both fail", critical: fail, advisory: fail, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			c.RegisterCheck("store", tt.critical, true)
			c.RegisterCheck("kernel", tt.advisory, false)

			report := c.CheckReadiness(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %s, want %s", report.Status, tt.want)
			}
			if !report.Checks["store"].Critical || report.Checks["kernel"].Critical {
				t.Errorf("critical flags not carried: %+v", report.Checks)
			}
		})
	}
}

func TestCheckReadiness_NoChecks(t *testing.T) {
	if got := New(0).CheckReadiness(context.Background()).Status; got != StatusReady {
		t.Errorf("Status = %s, want ready", got)
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	}, true)

	report := c.CheckReadiness(context.Background())
	res := report.Checks["slow"]
	if res.Status != StatusUnhealthy || res.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v", res)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestComponentChecks(t *testing.T) {
	if err := PingCheck(fakePinger{})(context.Background()); err != nil {
		t.Errorf("PingCheck healthy = %v", err)
	}
	if err := PingCheck(fakePinger{err: errors.New("locked")})(context.Background()); err == nil {
		t.Error("PingCheck should fail")
	}

	connected := false
	check := KernelCheck(func() bool { return connected })
	if err := check(context.Background()); !errors.Is(err, ErrKernelDetached) {
		t.Errorf("KernelCheck detached = %v", err)
	}
	connected = true
	if err := check(context.Background()); err != nil {
		t.Errorf("KernelCheck attached = %v", err)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("kernel", KernelCheck(func() bool { return false }), false)

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		method   string
		wantCode int
		want     string
	}{
		{name: "liveness", handler: c.LivenessHandler(), method: http.MethodGet, wantCode: http.StatusOK, want: StatusOK},
		{name: "readiness degraded", handler: c.ReadinessHandler(), method: http.MethodGet, wantCode: http.StatusOK, want: StatusDegraded},
		{name: "post rejected", handler: c.ReadinessHandler(), method: http.MethodPost, wantCode: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(tt.method, "/", nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.want == "" {
				return
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatal(err)
			}
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
		})
	}
}

func TestReadinessHandler_Unhealthy(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("store", PingCheck(fakePinger{err: errors.New("disk I/O error")}), true)

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", rec.Code)
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.0", "abc123", "2026-01-01")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.0" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}
