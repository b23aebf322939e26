// Package settings loads the utxodump configuration through gocore, which reads
// settings.conf, settings_local.conf and environment overrides.
package settings

import (
	"time"

	"github.com/bsv-blockchain/go-chaincfg"
	"github.com/bsv-blockchain/utxodump/errors"
)

func NewSettings() *Settings {
	network := getString("network", "mainnet")

	params, err := GetChainParams(network)
	if err != nil {
		panic(err)
	}

	return &Settings{
		Network:                 network,
		ChainCfgParams:          params,
		DataFolder:              getString("dataFolder", "data"),
		LogLevel:                getString("logLevel", "INFO"),
		LoggerType:              getString("logger", "zerolog"),
		ProfilerAddr:            getString("profilerAddr", ""),
		PrometheusEndpoint:      getString("prometheusEndpoint", ""),
		PrometheusListenAddress: getString("prometheusListenAddress", ":9091"),
		Replay: ReplaySettings{
			ExpectedSetSize:        getInt("replay_expectedSetSize", 10_000_000),
			ProgressInterval:       getInt("replay_progressInterval", 10_000),
			AllowDuplicateCoinbase: getBool("replay_allowDuplicateCoinbase", true),
			StartHeight:            getInt("replay_startHeight", 0),
			EndHeight:              getInt("replay_endHeight", -1),
			StoreURL:               getURL("replay_store", "mongodb://127.0.0.1:27017/bitcoindb"),
		},
		Export: ExportSettings{
			RetryCount:          getInt("export_retryCount", 3),
			BackoffMultiplier:   getInt("export_backoffMultiplier", 2),
			BackoffDurationType: getDuration("export_backoffDurationType", 100*time.Millisecond),
			MaxReportedFailures: getInt("export_maxReportedFailures", 100),
			ProgressInterval:    getInt("export_progressInterval", 1_000_000),
		},
		BlockFeed: BlockFeedSettings{
			BlocksDir:       getString("blockfeed_blocksDir", "./data/blocks"),
			Magic:           getString("blockfeed_magic", "f9beb4d9"),
			MaxBlockSize:    getInt("blockfeed_maxBlockSize", 2_000_000_000),
			MaxOpenFiles:    getInt("blockfeed_maxOpenFiles", 8),
			FileIdleTimeout: getDuration("blockfeed_fileIdleTimeout", time.Minute),
		},
		Mongo: MongoSettings{
			Database:       getString("mongo_database", "bitcoindb"),
			Collection:     getString("mongo_collection", "utxos"),
			ConnectTimeout: getDuration("mongo_connectTimeout", 10*time.Second),
			BatchSize:      getInt("mongo_batchSize", 1000),
		},
		SQL: SQLSettings{
			Table:                getString("sql_table", "utxos"),
			BatchSize:            getInt("sql_batchSize", 1000),
			PostgresMaxIdleConns: getInt("sql_postgresMaxIdleConns", 10),
			PostgresMaxOpenConns: getInt("sql_postgresMaxOpenConns", 80),
		},
	}
}

// GetChainParams returns the chain parameters for the named network.
func GetChainParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, errors.NewConfigurationError("unknown network %q", network)
	}
}
