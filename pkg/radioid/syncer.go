package radioid

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kb9vcn/dmr-relay/pkg/logger"
)

const (
	// DirectoryURL is the upstream DMR id database.
	DirectoryURL = "https://radioid.net/static/user.csv"
	// BatchSize bounds how many rows go into one insert statement.
	BatchSize = 1000
)

// Syncer periodically refreshes the local directory from radioid.net.
type Syncer struct {
	dir      *Directory
	log      *logger.Logger
	client   *http.Client
	interval time.Duration
}

// NewSyncer creates a syncer that refreshes every interval.
func NewSyncer(dir *Directory, interval time.Duration, log *logger.Logger) *Syncer {
	return &Syncer{
		dir:      dir,
		log:      log.WithComponent("radioid"),
		client:   &http.Client{Timeout: 5 * time.Minute},
		interval: interval,
	}
}

// Start syncs once immediately, then on every tick of interval, until
// ctx is cancelled. Sync failures are logged and never fatal.
func (s *Syncer) Start(ctx context.Context) {
	s.log.Info("starting radioid directory sync")
	if err := s.Sync(ctx); err != nil {
		s.log.Error("initial radioid sync failed", logger.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("radioid syncer stopped")
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.log.Error("radioid sync failed", logger.Error(err))
			}
		}
	}
}

// Sync downloads the current radioid.net user list and replaces the
// directory's contents with it.
func (s *Syncer) Sync(ctx context.Context) error {
	start := time.Now()
	s.log.Info("downloading radioid directory", logger.String("url", DirectoryURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DirectoryURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	users, err := parseCSV(resp.Body)
	if err != nil {
		return fmt.Errorf("parsing directory csv: %w", err)
	}

	if err := s.dir.Refresh(users, BatchSize); err != nil {
		return fmt.Errorf("saving directory: %w", err)
	}

	count, _ := s.dir.Count()
	s.log.Info("radioid sync complete",
		logger.Int64("total_users", count),
		logger.String("duration", time.Since(start).String()))
	return nil
}

// parseCSV parses the RADIO_ID,CALLSIGN,FIRST_NAME,LAST_NAME,CITY,
// STATE,COUNTRY,... format radioid.net publishes.
func parseCSV(r io.Reader) ([]User, error) {
	reader := csv.NewReader(bufio.NewReader(r))

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var users []User
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(record) < 7 {
			continue
		}
		radioID, err := strconv.ParseUint(record[0], 10, 32)
		if err != nil {
			continue
		}
		users = append(users, User{
			RadioID:   uint32(radioID),
			Callsign:  record[1],
			FirstName: record[2],
			LastName:  record[3],
			City:      record[4],
			State:     record[5],
			Country:   record[6],
			UpdatedAt: time.Now(),
		})
	}
	return users, nil
}
