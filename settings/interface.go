package settings

import (
	"net/url"
	"time"

	"github.com/bsv-blockchain/go-chaincfg"
)

type ReplaySettings struct {
	ExpectedSetSize        int
	ProgressInterval       int
	AllowDuplicateCoinbase bool
	StartHeight            int
	EndHeight              int // -1 replays every available block
	StoreURL               *url.URL
}

type ExportSettings struct {
	RetryCount          int
	BackoffMultiplier   int
	BackoffDurationType time.Duration
	MaxReportedFailures int
	ProgressInterval    int
}

type BlockFeedSettings struct {
	BlocksDir       string
	Magic           string
	MaxBlockSize    int
	MaxOpenFiles    int
	FileIdleTimeout time.Duration
}

type MongoSettings struct {
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	BatchSize      int
}

type SQLSettings struct {
	Table                string
	BatchSize            int
	PostgresMaxIdleConns int
	PostgresMaxOpenConns int
}

type Settings struct {
	Network                 string
	ChainCfgParams          *chaincfg.Params
	DataFolder              string
	LogLevel                string
	LoggerType              string
	ProfilerAddr            string
	PrometheusEndpoint      string
	PrometheusListenAddress string
	Replay                  ReplaySettings
	Export                  ExportSettings
	BlockFeed               BlockFeedSettings
	Mongo                   MongoSettings
	SQL                     SQLSettings
}
