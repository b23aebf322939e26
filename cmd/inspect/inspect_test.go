package inspect

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
	"github.com/bsv-blockchain/utxodump/stores/sink/file"
	"github.com/bsv-blockchain/utxodump/ulogger"
	"github.com/bsv-blockchain/utxodump/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "set."+file.Extension)

	s, err := file.New(ulogger.TestLogger{}, &url.URL{Scheme: "file", Path: path})
	require.NoError(t, err)

	records := make([]*model.Record, 0, n)

	for i := 0; i < n; i++ {
		txID := chainhash.DoubleHashH([]byte{byte(i)})
		records = append(records, model.NewRecord(model.NewKey(&txID, uint32(i)), uint32(i), 1000, test.TestAddress, i == 0)) //nolint:gosec
	}

	require.NoError(t, s.Write(context.Background(), records))

	require.NoError(t, s.Flush(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	return path
}

func TestRun(t *testing.T) {
	t.Run("summary and records", func(t *testing.T) {
		path := writeTestFile(t, 5)

		var out bytes.Buffer
		require.NoError(t, Run(&out, path, 2))

		assert.Contains(t, out.String(), "records     : 5\n")
		assert.Contains(t, out.String(), "total value : 5,000 satoshis\n")
		assert.Contains(t, out.String(), "checksum    : ok\n")
		assert.Equal(t, 2, strings.Count(out.String(), "coinbase="))
		assert.Contains(t, out.String(), "coinbase=true")
	})

	t.Run("limit above record count", func(t *testing.T) {
		path := writeTestFile(t, 3)

		var out bytes.Buffer
		require.NoError(t, Run(&out, path, 10))

		assert.Equal(t, 3, strings.Count(out.String(), "coinbase="))
	})

	t.Run("missing checksum", func(t *testing.T) {
		path := writeTestFile(t, 1)
		require.NoError(t, os.Remove(path+".sha256"))

		var out bytes.Buffer
		require.NoError(t, Run(&out, path, 0))

		assert.Contains(t, out.String(), "checksum    : unavailable")
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		path := writeTestFile(t, 1)
		require.NoError(t, os.WriteFile(path+".sha256", []byte(strings.Repeat("0", 64)+"  "+filepath.Base(path)+"\n"), 0o600))

		var out bytes.Buffer
		err := Run(&out, path, 1)
		require.Error(t, err)

		assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
		assert.Contains(t, out.String(), "checksum    : MISMATCH")
	})

	t.Run("missing file", func(t *testing.T) {
		var out bytes.Buffer
		require.Error(t, Run(&out, filepath.Join(t.TempDir(), "none."+file.Extension), 1))
	})
}
