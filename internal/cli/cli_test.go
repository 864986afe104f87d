package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	redisinfra "live-quiz-service/internal/infra/redis"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildComponentsInMemory(t *testing.T) {
	c, err := buildComponents(context.Background(), config.Default(), discardLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()
	if c.relay != nil {
		t.Fatalf("relay must be off without redis")
	}
	if len(c.health) != 0 {
		t.Fatalf("no health checks expected, got %v", c.health)
	}

	sess, err := c.service.CreateSession(context.Background(), "quiz-1", domain.Identity{UserID: "teacher"})
	if err != nil {
		t.Fatalf("create with sample quiz: %v", err)
	}
	if sess.QuestionCount() != len(sampleQuizzes()["quiz-1"].Questions) {
		t.Fatalf("session snapshot should carry the sample quiz")
	}
	if _, err := c.sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}

func TestBuildComponentsWithRedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Relay = true

	c, err := buildComponents(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()
	if c.relay == nil || c.health["redis"] == nil {
		t.Fatalf("expected relay and redis health check")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.relay.Run(ctx) }()
	select {
	case <-c.relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("relay did not subscribe")
	}

	sess, err := c.service.CreateSession(ctx, "quiz-1", domain.Identity{UserID: "teacher"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	events, unsubscribe := c.hub.Subscribe(sess.ID, domain.ChannelModerators)
	defer unsubscribe()

	if _, err := c.service.Join(ctx, sess.Code, domain.Identity{UserID: "u1"}, "Ann"); err != nil {
		t.Fatalf("join: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Type != domain.EventParticipantJoined {
			t.Fatalf("unexpected event %s", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("relayed event not delivered")
	}

	if !mr.Exists("quiz:code:" + sess.Code) {
		t.Fatalf("summary cache entry missing in redis; keys %v", mr.Keys())
	}
}

type recordingSaver struct {
	saved []string
}

func (s *recordingSaver) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	s.saved = append(s.saved, quiz.ID)
	return nil
}

func TestSeedEvictsCachedDefinitions(t *testing.T) {
	mr := miniredis.RunT(t)
	if err := mr.Set("quiz:quiz-1:definition", `{"id":"quiz-1","title":"stale"}`); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	client := newRedisClient(cfg)
	defer client.Close()

	saver := &recordingSaver{}
	repo := redisinfra.NewQuizRepository(client, nil, 0, discardLogger())
	if err := seedQuizzes(context.Background(), saver, repo, sampleQuizzes(), discardLogger()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(saver.saved) != 1 || saver.saved[0] != "quiz-1" {
		t.Fatalf("unexpected saved quizzes %v", saver.saved)
	}
	if mr.Exists("quiz:quiz-1:definition") {
		t.Fatalf("stale definition must be evicted after seeding")
	}

	if err := seedQuizzes(context.Background(), saver, nil, sampleQuizzes(), discardLogger()); err != nil {
		t.Fatalf("seed without redis: %v", err)
	}
}

func TestTokenCommand(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgFile, []byte("auth:\n  jwt_secret: test-secret\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgFile, "token", "teacher-1", "--role", "admin"})
	if err := root.Execute(); err != nil {
		t.Fatalf("token: %v", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c, err := buildComponents(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()
	id, err := c.verifier.Verify(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if id.UserID != "teacher-1" || !id.Admin {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	var buf bytes.Buffer
	logger := newLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	got := buf.String()
	if strings.Contains(got, "hidden") || !strings.Contains(got, `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", got)
	}

	cfg.Log.Level = "nonsense"
	buf.Reset()
	newLogger(cfg, &buf).Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("invalid level should fall back to info")
	}
}
