package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itrc/evaluation-workflow/internal/api/rest"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
)

func TestDispatch(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, dispatch(context.Background(), nil, &out))
	assert.Contains(t, out.String(), "seed-users")

	out.Reset()
	err := dispatch(context.Background(), []string{"frobnicate"}, &out)
	assert.EqualError(t, err, `unknown command "frobnicate"`)
}

func TestRunCatalog(t *testing.T) {
	t.Run("text for one product type", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runCatalog(context.Background(), []string{"-type", "antimalware"}, &out))
		assert.Contains(t, out.String(), "ANTIMALWARE")
		assert.Contains(t, out.String(), "FAM_MAL.1")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runCatalog(context.Background(), []string{"-json"}, &out))
		var entries []struct {
			Code    string `json:"code"`
			Classes []struct {
				Code   string `json:"code"`
				Weight string `json:"weight"`
			} `json:"classes"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
		require.NotEmpty(t, entries)
		assert.NotEmpty(t, entries[0].Classes)
	})

	t.Run("unknown type", func(t *testing.T) {
		err := runCatalog(context.Background(), []string{"-type", "TOASTER"}, &bytes.Buffer{})
		assert.Error(t, err)
	})
}

func TestRunToken(t *testing.T) {
	id := uuid.New()
	var out bytes.Buffer
	err := runToken(context.Background(), []string{
		"-user", id.String(),
		"-role", "supervisor",
		"-secret", "cli-secret",
		"-issuer", "itrc-evaluation",
		"-expiry", "1h",
	}, &out)
	require.NoError(t, err)

	auth := rest.NewAuthenticator(rest.AuthConfig{JWTSecret: []byte("cli-secret"), Issuer: "itrc-evaluation", TokenExpiry: time.Hour}, nil)
	actor, err := auth.Authenticate(context.Background(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, id, actor.ID)
	assert.Equal(t, authz.RoleSupervisor, actor.Role)

	err = runToken(context.Background(), []string{"-role", "janitor", "-secret", "x", "-issuer", "y", "-expiry", "1m"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunPreview(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "TR-2026-0001.md")
	require.NoError(t, os.WriteFile(md, []byte("# Technical Report\n\n| Class | Score |\n|---|---|\n| FAM_MAL | 82 |\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, runPreview(context.Background(), []string{"-style", "notty", md}, &out))
	assert.Contains(t, out.String(), "Technical Report")
	assert.Contains(t, out.String(), "FAM_MAL")

	html := filepath.Join(dir, "TR-2026-0001.html")
	require.NoError(t, os.WriteFile(html, []byte("<h1>x</h1>"), 0o644))
	assert.Error(t, runPreview(context.Background(), []string{html}, &bytes.Buffer{}))
	assert.Error(t, runPreview(context.Background(), nil, &bytes.Buffer{}))
}

func TestParseUsers(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	supervisorID := uuid.New()

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, got []*user.User)
	}{
		{
			name: "defaults and derived ids",
			yaml: `
users:
  - email: Eva@Lab.example
    full_name: Eva Evaluator
    role: evaluator
    supervisor_id: ` + supervisorID.String() + `
  - email: ann@vendor.example
    full_name: Ann Applicant
    role: applicant
    active: false
`,
			check: func(t *testing.T, got []*user.User) {
				require.Len(t, got, 2)
				assert.Equal(t, authz.RoleEvaluator, got[0].Role)
				assert.True(t, got[0].Active)
				assert.Equal(t, &supervisorID, got[0].SupervisorID)
				assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:eva@lab.example")), got[0].ID)
				assert.False(t, got[1].Active)
				assert.Equal(t, now, got[1].CreatedAt)
			},
		},
		{name: "unknown role", yaml: "users:\n  - {email: a@b.c, full_name: A, role: wizard}\n", wantErr: true},
		{name: "missing email", yaml: "users:\n  - {full_name: A, role: admin}\n", wantErr: true},
		{name: "bad id", yaml: "users:\n  - {id: nope, email: a@b.c, full_name: A, role: admin}\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUsers([]byte(tt.yaml), now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}
