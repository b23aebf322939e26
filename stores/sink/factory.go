package sink

import (
	"context"
	"net/url"
	"sort"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/settings"
	"github.com/bsv-blockchain/utxodump/ulogger"
)

type initFunc func(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (Sink, error)

var availableDatabases = map[string]initFunc{}

// New opens the sink selected by the scheme of storeURL. The connection is checked
// before returning, so an unreachable store fails here.
func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (Sink, error) {
	if storeURL == nil {
		return nil, errors.NewConfigurationError("missing sink url")
	}

	dbInit, ok := availableDatabases[storeURL.Scheme]
	if !ok {
		return nil, errors.NewConfigurationError("unknown sink scheme %q, expected one of %v", storeURL.Scheme, Schemes())
	}

	logger.Infof("[Sink] connecting to %s sink at %s", storeURL.Scheme, storeURL.Redacted())

	s, err := dbInit(ctx, logger, tSettings, storeURL)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Schemes lists the supported url schemes.
func Schemes() []string {
	schemes := make([]string, 0, len(availableDatabases))
	for scheme := range availableDatabases {
		schemes = append(schemes, scheme)
	}

	sort.Strings(schemes)

	return schemes
}
