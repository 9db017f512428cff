package app

import (
	"fmt"
	"log"
	"strings"

	"carrierdesk/internal/broker/config"
	"carrierdesk/internal/broker/repository/callstore"
	"carrierdesk/internal/broker/repository/carrierstore"
	"carrierdesk/internal/broker/repository/loadstore"
	"carrierdesk/internal/broker/repository/sessionstore"
	"carrierdesk/internal/broker/repository/transcript"
)

type brokerStores struct {
	sessions    *sessionstore.Store
	loads       *loadstore.Store
	carriers    *carrierstore.Store
	calls       *callstore.Store
	transcripts transcript.Store
}

func initStores(cfg *config.Config) (*brokerStores, error) {
	transcripts, err := chooseTranscriptStore(cfg)
	if err != nil {
		return nil, err
	}

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		return initPostgresStores(dsn, transcripts)
	}
	log.Printf("stores: no DATABASE_URL, using in-memory backends")
	return &brokerStores{
		sessions:    sessionstore.NewMemory(),
		loads:       loadstore.NewMemory(),
		carriers:    carrierstore.NewMemory(),
		calls:       callstore.NewMemory(),
		transcripts: transcripts,
	}, nil
}

func initPostgresStores(dsn string, transcripts transcript.Store) (*brokerStores, error) {
	sessions, err := sessionstore.NewPostgres(dsn)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	loads, err := loadstore.NewPostgres(dsn)
	if err != nil {
		return nil, fmt.Errorf("open load store: %w", err)
	}
	carriers, err := carrierstore.NewPostgres(dsn)
	if err != nil {
		return nil, fmt.Errorf("open carrier store: %w", err)
	}
	calls, err := callstore.NewPostgres(dsn)
	if err != nil {
		return nil, fmt.Errorf("open call store: %w", err)
	}
	return &brokerStores{
		sessions:    sessions,
		loads:       loads,
		carriers:    carriers,
		calls:       calls,
		transcripts: transcripts,
	}, nil
}

func chooseTranscriptStore(cfg *config.Config) (transcript.Store, error) {
	if cfg.Transcript.CanUseS3() {
		s3, err := transcript.NewS3Store(transcript.S3Config{
			Endpoint:  cfg.Transcript.Endpoint,
			Region:    cfg.Transcript.Region,
			AccessKey: cfg.Transcript.AccessKey,
			SecretKey: cfg.Transcript.SecretKey,
			Bucket:    cfg.Transcript.Bucket,
			UseSSL:    cfg.Transcript.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init transcript s3 store: %w", err)
		}
		log.Printf("transcript store: s3 bucket=%s endpoint=%s", cfg.Transcript.Bucket, cfg.Transcript.Endpoint)
		return s3, nil
	}
	if cfg.Transcript.Enabled {
		log.Printf("transcript store: using in-memory fallback (s3 config incomplete)")
	}
	return transcript.NewMemoryStore(), nil
}

func (s *brokerStores) Close() {
	_ = s.sessions.Close()
	_ = s.loads.Close()
	_ = s.carriers.Close()
	_ = s.calls.Close()
}
