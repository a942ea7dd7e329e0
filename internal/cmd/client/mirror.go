package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	transports "github.com/gemdrive/gemdrive/internal/cmd/client/transports"
	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/storage/fs"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

// MirrorStateFile holds the mirror checkpoint inside the mirrored directory.
const MirrorStateFile = ".gemdrive-mirror.json"

// mirrorState is the checkpoint: the last applied event.
type mirrorState struct {
	Since   time.Time `json:"since"`
	LastSeq uint64    `json:"lastSeq"`
}

// Remote is what a Mirror needs from the server.
type Remote interface {
	transports.FeedTransport
	Fetch(ctx context.Context, path string) (io.ReadCloser, error)
}

// Mirror keeps a local directory in sync with the server's files by
// replaying the feed from its checkpoint and applying each event.
type Mirror struct {
	remote Remote
	local  fs.Backend
	logger logpkg.Logger
	state  mirrorState
	// Applied counts events written to the local tree.
	Applied int
	// newBackOff is swapped in tests.
	newBackOff func() backoff.BackOff
}

// NewMirror loads the checkpoint from local, if any.
func NewMirror(ctx context.Context, remote Remote, local fs.Backend, logger logpkg.Logger) (*Mirror, error) {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	m := &Mirror{remote: remote, local: local, logger: logger.With(logpkg.Component("mirror"))}
	m.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 30 * time.Second
		b.MaxElapsedTime = 0
		return b
	}
	rc, _, err := local.Open(ctx, "/"+MirrorStateFile)
	switch {
	case errors.Is(err, fs.ErrNotFound):
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("read mirror state: %w", err)
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(&m.state); err != nil {
		return nil, fmt.Errorf("decode mirror state: %w", err)
	}
	return m, nil
}

// Run syncs until ctx ends or the server rejects the token. Dropped
// connections and terminal frames are retried with exponential backoff.
func (m *Mirror) Run(ctx context.Context) error {
	b := backoff.WithContext(m.newBackOff(), ctx)
	err := backoff.RetryNotify(func() error {
		err := m.Sync(ctx, b)
		switch {
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case errors.Is(err, transports.ErrUnauthorized):
			return backoff.Permanent(err)
		case err == nil:
			return errors.New("feed closed")
		}
		return err
	}, b, func(err error, wait time.Duration) {
		m.logger.Warn("mirror disconnected, retrying", logpkg.Err(err), logpkg.Dur("wait", wait))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Sync runs one feed session from the checkpoint. b, when set, is reset
// once an event has been applied.
func (m *Mirror) Sync(ctx context.Context, b backoff.BackOff) error {
	since := m.state.Since
	if since.IsZero() {
		since = time.UnixMilli(0).UTC()
	}
	m.logger.Info("mirror syncing", logpkg.Str("since", since.Format(time.RFC3339Nano)), logpkg.Uint64("last_seq", m.state.LastSeq))
	reset := b != nil
	return m.remote.Tail(ctx, transports.TailRequest{Since: &since}, func(ev eventlog.Event) error {
		if err := m.apply(ctx, ev); err != nil {
			return err
		}
		if reset {
			b.Reset()
			reset = false
		}
		return nil
	})
}

// apply mirrors one event. Events at or below the checkpoint are the
// overlap of a resumed replay and are skipped.
func (m *Mirror) apply(ctx context.Context, ev eventlog.Event) error {
	if m.state.LastSeq != 0 && ev.Seq <= m.state.LastSeq {
		return nil
	}
	clean, err := fs.CleanPath(ev.Path)
	if err != nil || clean == "/"+MirrorStateFile {
		m.logger.Warn("mirror skipping path", logpkg.Str("path", ev.Path))
		return m.checkpoint(ctx, ev)
	}
	switch ev.Kind {
	case eventlog.KindWrite:
		rc, err := m.remote.Fetch(ctx, clean)
		if errors.Is(err, transports.ErrNotFound) {
			// Deleted since; the delete event follows.
			return m.checkpoint(ctx, ev)
		}
		if err != nil {
			return fmt.Errorf("fetch %s: %w", clean, err)
		}
		err = m.local.Write(ctx, clean, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("write %s: %w", clean, err)
		}
	case eventlog.KindDelete:
		if err := m.local.Delete(ctx, clean); err != nil && !errors.Is(err, fs.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", clean, err)
		}
	default:
		m.logger.Warn("mirror skipping unknown event", logpkg.Str("type", string(ev.Kind)))
	}
	m.Applied++
	m.logger.Debug("mirrored", logpkg.Str("path", clean), logpkg.Str("type", string(ev.Kind)), logpkg.Uint64("seq", ev.Seq))
	return m.checkpoint(ctx, ev)
}

func (m *Mirror) checkpoint(ctx context.Context, ev eventlog.Event) error {
	m.state = mirrorState{Since: ev.Timestamp, LastSeq: ev.Seq}
	b, err := json.Marshal(m.state)
	if err != nil {
		return err
	}
	if err := m.local.Write(ctx, "/"+MirrorStateFile, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("save mirror state: %w", err)
	}
	return nil
}

// newMirrorCommand constructs the `mirror` subcommand.
func newMirrorCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Keep a local directory in sync with the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			token, _ := cmd.Flags().GetString("token")
			if dir == "" {
				return errors.New("--dir is required")
			}
			local, err := fs.NewLocal(dir)
			if err != nil {
				return err
			}
			logger := logpkg.NewLogger(
				logpkg.WithLevel(logpkg.InfoLevel),
				logpkg.WithFormatter(&logpkg.TextFormatter{}),
				logpkg.WithOutput(logpkg.NewConsoleOutput()),
			)
			m, err := NewMirror(cmd.Context(), transports.NewHTTPTransport(baseURL(), token), local, logger)
			if err != nil {
				return err
			}
			return m.Run(cmd.Context())
		},
	}
	cmd.Flags().String("dir", "", "Local directory to mirror into")
	cmd.Flags().String("token", tokenFromEnv(), "Bearer token (env GEMDRIVE_TOKEN)")
	return cmd
}
