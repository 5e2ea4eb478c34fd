package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/itrc/evaluation-workflow/internal/api/rest"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
	catalogseed "github.com/itrc/evaluation-workflow/internal/infrastructure/catalog"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/config"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/database"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/repository"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/telemetry"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func runCatalog(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(out)
	seed := fs.String("seed", "", "catalog seed YAML (embedded seed when empty)")
	code := fs.String("type", "", "only print the product type with this code")
	asJSON := fs.Bool("json", false, "print JSON instead of text")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cat, err := catalogseed.Load(*seed)
	if err != nil {
		return err
	}

	types := cat.ProductTypes()
	if *code != "" {
		pt, err := findProductType(types, *code)
		if err != nil {
			return err
		}
		types = []catalog.ProductType{pt}
	}

	if *asJSON {
		type entry struct {
			catalog.ProductType
			Classes []catalog.Class `json:"classes"`
		}
		entries := make([]entry, 0, len(types))
		for _, pt := range types {
			classes, err := cat.Classes(pt.ID)
			if err != nil {
				return err
			}
			entries = append(entries, entry{ProductType: pt, Classes: classes})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, pt := range types {
		classes, err := cat.Classes(pt.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("%s  %s", pt.Code, pt.NameEn)))
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s | %d days | %s", pt.NameFa, pt.EstimatedDays, pt.ProtectionProfile)))
		for _, c := range classes {
			fmt.Fprintf(out, "  %-10s %-50s weight %s\n", c.Code, c.NameEn, c.Weight.StringFixed(2))
			for _, sc := range c.Subclasses {
				fmt.Fprintf(out, "    %-12s %s\n", sc.Code, sc.NameEn)
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}

func findProductType(types []catalog.ProductType, code string) (catalog.ProductType, error) {
	for _, pt := range types {
		if strings.EqualFold(pt.Code, code) {
			return pt, nil
		}
	}
	return catalog.ProductType{}, fmt.Errorf("no product type with code %q", code)
}

func runToken(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	id := fs.String("user", "", "user id (random when empty)")
	roleName := fs.String("role", "applicant", "applicant, evaluator, supervisor, governance or admin")
	name := fs.String("name", "", "display name carried in the token")
	secret := fs.String("secret", "", "signing secret (security.jwt_secret when empty)")
	issuer := fs.String("issuer", "", "issuer (security.issuer when empty)")
	expiry := fs.Duration("expiry", 0, "lifetime (security.token_expiry when zero)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	role, err := authz.ParseRole(*roleName)
	if err != nil {
		return err
	}
	userID := uuid.New()
	if *id != "" {
		if userID, err = uuid.Parse(*id); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
	}

	authCfg := rest.AuthConfig{JWTSecret: []byte(*secret), Issuer: *issuer, TokenExpiry: *expiry}
	if *secret == "" || *issuer == "" || *expiry == 0 {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if *secret == "" {
			authCfg.JWTSecret = []byte(cfg.Security.JWTSecret)
		}
		if *issuer == "" {
			authCfg.Issuer = cfg.Security.Issuer
		}
		if *expiry == 0 {
			authCfg.TokenExpiry = cfg.Security.TokenExpiry
		}
	}
	if len(authCfg.JWTSecret) == 0 {
		return errors.New("no signing secret: pass -secret or set EVAL_SECURITY__JWT_SECRET")
	}

	token, err := rest.NewAuthenticator(authCfg, nil).GenerateToken(authz.Actor{ID: userID, Role: role}, *name)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func runPreview(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(out)
	width := fs.Int("width", 100, "word wrap width")
	style := fs.String("style", "auto", "glamour style: auto, dark, light, notty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: evalctl preview [flags] <report.md>")
	}

	path := fs.Arg(0)
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".md" && ext != ".markdown" {
		return fmt.Errorf("preview renders markdown reports, got %s", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	rendered, err := renderTerminal(data, *style, *width)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, rendered)
	return err
}

func renderTerminal(md []byte, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	return r.Render(string(md))
}

type seedUser struct {
	ID           string `yaml:"id"`
	Email        string `yaml:"email"`
	FullName     string `yaml:"full_name"`
	Role         string `yaml:"role"`
	CompanyName  string `yaml:"company_name"`
	Phone        string `yaml:"phone"`
	Active       *bool  `yaml:"active"`
	SupervisorID string `yaml:"supervisor_id"`
}

// parseUsers reads a seed file. Users without an id get one derived from
// their email, so seeding twice yields the same identities.
func parseUsers(data []byte, now time.Time) ([]*user.User, error) {
	var file struct {
		Users []seedUser `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing users: %w", err)
	}

	users := make([]*user.User, 0, len(file.Users))
	for i, s := range file.Users {
		if s.Email == "" || s.FullName == "" {
			return nil, fmt.Errorf("user %d: email and full_name are required", i)
		}
		role, err := authz.ParseRole(s.Role)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", s.Email, err)
		}
		u := &user.User{
			ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(s.Email))),
			Email:       s.Email,
			FullName:    s.FullName,
			Role:        role,
			CompanyName: s.CompanyName,
			Phone:       s.Phone,
			Active:      s.Active == nil || *s.Active,
			CreatedAt:   now,
		}
		if s.ID != "" {
			if u.ID, err = uuid.Parse(s.ID); err != nil {
				return nil, fmt.Errorf("user %s: invalid id: %w", s.Email, err)
			}
		}
		if s.SupervisorID != "" {
			sid, err := uuid.Parse(s.SupervisorID)
			if err != nil {
				return nil, fmt.Errorf("user %s: invalid supervisor_id: %w", s.Email, err)
			}
			u.SupervisorID = &sid
		}
		users = append(users, u)
	}
	return users, nil
}

func runSeedUsers(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seed-users", flag.ContinueOnError)
	fs.SetOutput(out)
	file := fs.String("file", "configs/users.yaml", "YAML file with a users list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	users, err := parseUsers(data, time.Now().UTC())
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := telemetry.NewZapLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pool, err := database.NewConnectionPool(&cfg.Database, logger.Named("database"))
	if err != nil {
		return err
	}
	defer pool.Close()
	repo := repository.NewUserRepository(pool)

	var created, skipped int
	for _, u := range users {
		err := repo.Create(ctx, u)
		switch {
		case apperrors.IsType(err, apperrors.ErrorTypeConflict):
			skipped++
			logger.Info("user exists", zap.String("email", u.Email))
		case err != nil:
			return fmt.Errorf("creating %s: %w", u.Email, err)
		default:
			created++
			fmt.Fprintf(out, "%s  %-10s %s\n", u.ID, u.Role, u.Email)
		}
	}
	fmt.Fprintf(out, "%d created, %d already present\n", created, skipped)
	return nil
}
