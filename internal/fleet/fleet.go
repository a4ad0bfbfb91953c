package fleet

import (
	"context"
	"time"

	"github.com/joelmoss/vcsinfo/internal/config"
	"github.com/joelmoss/vcsinfo/internal/vcs"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Session is an authenticated connection to one host.
type Session interface {
	vcs.CommandExecutor
	Close() error
}

// DialFunc opens a session for a credential.
type DialFunc func(ctx context.Context, cred config.Credential) (Session, error)

// Service collects VCS state from every host in a users file.
type Service struct {
	Dial        DialFunc
	ProjectPath string
	Concurrency int           // hosts processed at once, at least 1
	HostTimeout time.Duration // zero means no per-host limit
	Logger      zerolog.Logger
}

func (s *Service) concurrency() int {
	if s.Concurrency < 1 {
		return 1
	}
	return s.Concurrency
}

// Collect processes every credential and returns the report keyed by user.
// All credentials are validated before any host is contacted. Failures on a
// host are recorded in its result and never stop the other hosts. When a
// user appears more than once the last record in creds wins.
func (s *Service) Collect(ctx context.Context, creds []config.Credential) (Report, error) {
	for _, cred := range creds {
		if err := cred.Validate(); err != nil {
			return nil, err
		}
	}

	results := make([]HostResult, len(creds))

	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for i, cred := range creds {
		g.Go(func() error {
			results[i] = s.collectHost(ctx, cred)
			return nil
		})
	}
	g.Wait()

	report := make(Report, len(results))
	for _, r := range results {
		report[r.User] = r
	}
	return report, nil
}

func (s *Service) collectHost(ctx context.Context, cred config.Credential) HostResult {
	log := s.Logger.With().Str("host", cred.Hostname).Str("user", cred.User).Logger()
	result := newResult(cred)

	if s.HostTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.HostTimeout)
		defer cancel()
	}

	log.Debug().Msg("connecting")
	session, err := s.Dial(ctx, cred)
	if err != nil {
		log.Warn().Err(err).Msg("connection failed")
		return result.connectFailed(err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Debug().Err(err).Msg("closing session")
		}
	}()

	kind, err := vcs.Detect(ctx, session, s.ProjectPath)
	if err != nil {
		log.Warn().Err(err).Msg("vcs detection failed")
		return result.detectFailed(err)
	}

	v := vcs.ForKind(kind, session)
	log.Debug().Msgf("detected %s", v.Label())

	info, err := v.Info(ctx, s.ProjectPath)
	if err != nil {
		log.Warn().Err(err).Str("vcs", string(kind)).Msg("reading revision failed")
		return result.extractFailed(kind, err)
	}

	log.Debug().Str("revision", info.Revision).Str("branch", info.Branch).Msg("done")
	return result.ok(info)
}
