package version

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

func withBuildVars(t *testing.T, appVersion, commit, buildTime string) {
	t.Helper()
	prevVersion, prevCommit, prevTime := AppVersion, GitCommit, BuildTime
	AppVersion, GitCommit, BuildTime = appVersion, commit, buildTime
	t.Cleanup(func() {
		AppVersion, GitCommit, BuildTime = prevVersion, prevCommit, prevTime
	})
}

func TestCurrent_Defaults(t *testing.T) {
	withBuildVars(t, " ", "", "")

	info := Current("")
	if info.Service != Unknown {
		t.Fatalf("expected service %q, got %q", Unknown, info.Service)
	}
	if info.Version != DevelopmentVersion {
		t.Fatalf("expected version %q, got %q", DevelopmentVersion, info.Version)
	}
	if info.Commit != Unknown || info.BuildTime != Unknown {
		t.Fatalf("expected unknown commit/build time, got %q/%q", info.Commit, info.BuildTime)
	}
	if info.GoVersion != runtime.Version() {
		t.Fatalf("expected go version %q, got %q", runtime.Version(), info.GoVersion)
	}
	if !info.IsDevelopment() {
		t.Fatal("expected development build")
	}
}

func TestCurrent_Stamped(t *testing.T) {
	withBuildVars(t, "v1.4.0", "abc1234", "2026-01-02T03:04:05Z")

	info := Current("docstore")
	if info.Version != "v1.4.0" || info.Commit != "abc1234" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.IsDevelopment() {
		t.Fatal("expected release build")
	}
	if !strings.HasPrefix(info.String(), "docstore@v1.4.0 (commit=abc1234") {
		t.Fatalf("unexpected String() %q", info.String())
	}
}

func TestInfo_ParseBuildTime(t *testing.T) {
	ts, ok := Info{BuildTime: "2026-01-02T03:04:05Z"}.ParseBuildTime()
	if !ok {
		t.Fatal("expected build time to parse")
	}
	if !ts.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", ts)
	}

	if _, ok := (Info{BuildTime: Unknown}).ParseBuildTime(); ok {
		t.Fatal("expected unknown build time to be rejected")
	}
	if _, ok := (Info{BuildTime: "yesterday"}).ParseBuildTime(); ok {
		t.Fatal("expected malformed build time to be rejected")
	}
}
