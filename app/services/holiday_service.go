package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/config"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/models"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/repository"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"github.com/redis/go-redis/v9"
)

// HolidayService answers public-holiday lookups. Lookups hit redis first,
// then the database cache; missing country-years are fetched from the
// calendar API and persisted, so the window validator can call this
// synchronously on every tick.
type HolidayService struct {
	repo        repository.HolidayRepository
	redisClient *redis.Client
	holidayCfg  config.HolidayConfig
	cacheCfg    config.CacheConfig
	client      *http.Client
	logger      *log.Logger
}

// publicHoliday mirrors one entry of the calendar API response
type publicHoliday struct {
	Date        string `json:"date"` // YYYY-MM-DD
	LocalName   string `json:"localName"`
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
}

// NewHolidayService creates a holiday lookup service. redisClient may be nil,
// lookups then go straight to the database cache.
func NewHolidayService(
	repo repository.HolidayRepository,
	redisClient *redis.Client,
	holidayCfg config.HolidayConfig,
	cacheCfg config.CacheConfig,
	logger *log.Logger,
) *HolidayService {
	if logger == nil {
		logger = log.Default()
	}
	return &HolidayService{
		repo:        repo,
		redisClient: redisClient,
		holidayCfg:  holidayCfg,
		cacheCfg:    cacheCfg,
		client: &http.Client{
			Timeout: holidayCfg.Timeout,
		},
		logger: logger,
	}
}

// IsHoliday reports whether the date is a public holiday in any of the given
// countries.
func (s *HolidayService) IsHoliday(ctx context.Context, date time.Time, countryCodes []string) (bool, error) {
	for _, cc := range countryCodes {
		holiday, err := s.isHolidayIn(ctx, date, cc)
		if err != nil {
			return false, err
		}
		if holiday {
			return true, nil
		}
	}
	return false, nil
}

func (s *HolidayService) isHolidayIn(ctx context.Context, date time.Time, countryCode string) (bool, error) {
	key := fmt.Sprintf("%sholiday:%s:%s", s.cacheCfg.RedisPrefix, countryCode, date.Format("2006-01-02"))

	if s.redisClient != nil {
		if val, err := s.redisClient.Get(ctx, key).Result(); err == nil {
			return val == "1", nil
		}
	}

	if err := s.ensureYear(ctx, countryCode, date.Year()); err != nil {
		return false, err
	}
	exists, err := s.repo.ExistsOnDate(ctx, date, countryCode)
	if err != nil {
		return false, err
	}

	if s.redisClient != nil {
		val := "0"
		if exists {
			val = "1"
		}
		if err := s.redisClient.Set(ctx, key, val, s.cacheCfg.DefaultTTL).Err(); err != nil {
			s.logger.Printf("holiday cache write failed for %s: %v", key, err)
		}
	}
	return exists, nil
}

// Refresh prefetches the calendars of the configured countries for the
// current year, and the next year as well once December starts.
func (s *HolidayService) Refresh(ctx context.Context) error {
	now := utils.UTCNow()
	years := []int{now.Year()}
	if now.Month() == time.December {
		years = append(years, now.Year()+1)
	}

	for _, cc := range s.holidayCfg.PrefetchCountries {
		for _, year := range years {
			if err := s.ensureYear(ctx, cc, year); err != nil {
				return fmt.Errorf("prefetch %s/%d failed: %w", cc, year, err)
			}
		}
	}
	return nil
}

// ensureYear fetches and persists a country-year calendar when the database
// cache does not have it yet.
func (s *HolidayService) ensureYear(ctx context.Context, countryCode string, year int) error {
	cached, err := s.repo.HasYear(ctx, countryCode, year)
	if err != nil {
		return err
	}
	if cached {
		return nil
	}

	holidays, err := s.fetchYear(ctx, countryCode, year)
	if err != nil {
		return err
	}
	if err := s.repo.ReplaceYear(ctx, countryCode, year, holidays); err != nil {
		return err
	}
	s.logger.Printf("cached %d holidays for %s/%d", len(holidays), countryCode, year)
	return nil
}

func (s *HolidayService) fetchYear(ctx context.Context, countryCode string, year int) ([]*models.Holiday, error) {
	url := fmt.Sprintf("%s/PublicHolidays/%d/%s", s.holidayCfg.APIBaseURL, year, countryCode)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create holiday API request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("holiday API call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday API returned status %d for %s/%d", resp.StatusCode, countryCode, year)
	}

	var entries []publicHoliday
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode holiday API response: %w", err)
	}

	holidays := make([]*models.Holiday, 0, len(entries))
	for _, e := range entries {
		date, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			s.logger.Printf("skipping malformed holiday date %q for %s", e.Date, countryCode)
			continue
		}
		holidays = append(holidays, &models.Holiday{
			Date:        date,
			CountryCode: countryCode,
			Name:        e.Name,
			Year:        year,
		})
	}
	return holidays, nil
}
