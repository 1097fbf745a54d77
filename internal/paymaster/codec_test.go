package paymaster

import (
	"bytes"
	"testing"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPaymaster = common.HexToAddress("0x9ac77eA1280fF4dCf89b2D0f47bd15c396898945")
	testPayer     = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

func TestEncodeLayout(t *testing.T) {
	t.Parallel()

	data, err := Encode(testPayer, domain.PaymasterModeSession, testPaymaster)
	require.NoError(t, err)
	require.Len(t, data, Length)
	assert.Equal(t, 41, Length)
	assert.Equal(t, testPaymaster.Bytes(), data[:20])
	assert.Equal(t, testPayer.Bytes(), data[20:40])
	assert.Equal(t, byte(0x01), data[40])
}

func TestEncodeMatchesHexConcatenation(t *testing.T) {
	t.Parallel()

	data, err := Encode(testPayer, domain.PaymasterModeToken, testPaymaster)
	require.NoError(t, err)

	want := common.FromHex("0x" + testPaymaster.Hex()[2:] + testPayer.Hex()[2:] + "00")
	assert.True(t, bytes.Equal(want, data))
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, mode := range []domain.PaymasterMode{domain.PaymasterModeToken, domain.PaymasterModeSession} {
		mode := mode
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			data, err := Encode(testPayer, mode, testPaymaster)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, domain.PaymasterData{Paymaster: testPaymaster, Payer: testPayer, Mode: mode}, got)
		})
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 20, 40, 42, 64} {
		_, err := Decode(make([]byte, size))
		require.ErrorIs(t, err, domain.ErrMalformedLength, "size %d", size)
		assert.ErrorIs(t, err, domain.ErrMalformedPaymasterData)
	}
}

func TestDecodeRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	data, err := Encode(testPayer, domain.PaymasterModeToken, testPaymaster)
	require.NoError(t, err)
	data[40] = 0x02

	_, err = Decode(data)
	require.ErrorIs(t, err, domain.ErrUnknownMode)
	assert.NotErrorIs(t, err, domain.ErrMalformedLength)
}

func TestEncodeRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := Encode(testPayer, domain.PaymasterMode(7), testPaymaster)
	require.ErrorIs(t, err, domain.ErrUnknownMode)
}
