package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pricemesh/pricemesh/config"
	"github.com/pricemesh/pricemesh/feed/types"
	"github.com/pricemesh/pricemesh/feed/venue"
)

type IntegrationTestSuite struct {
	suite.Suite

	logger zerolog.Logger
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.logger = getLogger()
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

// TestWebsocketVenues tests that we receive pricing information from every
// configured venue's websocket stream.
func (s *IntegrationTestSuite) TestWebsocketVenues() {
	if testing.Short() {
		s.T().Skip("skipping integration test in short mode")
	}

	cfg, err := config.ParseConfig("../../pricemesh.example.toml")
	require.NoError(s.T(), err)

	endpoints := make(map[types.VenueName]venue.Endpoint)
	for _, endpoint := range cfg.Endpoints {
		endpoints[endpoint.Name] = endpoint
	}

	var waitGroup sync.WaitGroup
	for _, name := range cfg.Venues {
		waitGroup.Add(1)
		venueName := name

		go func() {
			defer waitGroup.Done()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s.T().Logf("Checking %s venue for %s", venueName, cfg.Asset)
			adapter, err := venue.New(venueName, cfg.Asset, endpoints[venueName])
			require.NoError(s.T(), err)

			out := make(chan types.Snapshot, 64)
			runner := venue.NewRunner(getLogger(), adapter, venue.DefaultRunnerConfig(), out)
			go runner.Run(ctx)
			defer runner.Stop()

			// wait for the venue to connect and stream some prices
			time.Sleep(60 * time.Second)
			checkForPrices(s.T(), runner, venueName)
		}()
	}
	waitGroup.Wait()
}

func checkForPrices(t *testing.T, runner *venue.Runner, venueName types.VenueName) {
	snapshot, ok := runner.LastSnapshot()
	if !assert.True(t, ok, "%s venue never produced a snapshot", venueName) {
		return
	}

	assert.Positive(t, snapshot.Price, "%s venue price is not positive", venueName)
	assert.LessOrEqual(
		t,
		snapshot.AgeMs(time.Now().UnixMilli()),
		int64(30_000),
		"%s venue last snapshot is stale", venueName,
	)
}
