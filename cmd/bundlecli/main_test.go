package main

import (
	"bytes"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	core "github.com/ligun0805/bundle-relay/internal/bundlecore"
	"github.com/ligun0805/bundle-relay/internal/config"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PRIVATE_KEY", testKey)
	t.Setenv("RPC_URL", "https://sepolia.example.org")
}

func TestLoadSettingsFlagOverrides(t *testing.T) {
	setRequired(t)

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--max-attempts", "7", "--no-simulate"}))

	st, err := loadSettings(cmd)
	require.NoError(t, err)
	require.Equal(t, 7, st.MaxAttempts)
	require.False(t, st.Simulate)
	require.Equal(t, config.DefaultRelayURL, st.RelayURL)
}

func TestLoadSettingsDefaultsWithoutFlags(t *testing.T) {
	setRequired(t)

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	st, err := loadSettings(cmd)
	require.NoError(t, err)
	require.Equal(t, config.DefaultMaxAttempts, st.MaxAttempts)
	require.True(t, st.Simulate)
}

func TestLoadSettingsRejectsZeroAttempts(t *testing.T) {
	setRequired(t)

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--max-attempts", "0"}))

	_, err := loadSettings(cmd)
	require.ErrorContains(t, err, "MAX_ATTEMPTS")
}

func TestSimulateCommandInheritsFlags(t *testing.T) {
	cmd, _, err := newRootCmd().Find([]string{"dry-run"})
	require.NoError(t, err)
	require.Equal(t, "simulate", cmd.Name())
	require.NotNil(t, cmd.InheritedFlags().Lookup("env-file"))
	require.NotNil(t, cmd.InheritedFlags().Lookup("prompt-key"))
}

func TestExecuteMissingKeyExitsNonZero(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "")
	t.Setenv("RPC_URL", "https://sepolia.example.org")

	cmd := newRootCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	require.Equal(t, 1, execute(cmd, nil))
	require.Contains(t, stderr.String(), "PRIVATE_KEY")
}

func TestExecuteExitCodes(t *testing.T) {
	tests := []struct {
		name string
		res  core.Result
		err  error
		want int
	}{
		{"included", core.Result{Status: core.StatusIncluded, Included: true}, nil, 0},
		{"exhausted", core.Result{Status: core.StatusExhausted, Reason: "exhausted attempts"}, nil, 0},
		{"fatal", core.Result{Status: core.StatusFatal, Reason: "send bundle: boom"}, errors.New("send bundle: boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{
				Use:           "bundlecli",
				SilenceUsage:  true,
				SilenceErrors: true,
				RunE: func(cmd *cobra.Command, _ []string) error {
					return reportResult(cmd.OutOrStdout(), tt.res, tt.err)
				},
			}
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			require.Equal(t, tt.want, execute(cmd, nil))
		})
	}
}

func TestReportResultIncluded(t *testing.T) {
	res := core.Result{
		Status:      core.StatusIncluded,
		Included:    true,
		Reason:      "included",
		TargetBlock: 1001,
		BundleHash:  common.Hash{0xaa},
		TxHashes:    []common.Hash{{0x01}, {0x02}},
	}
	var out bytes.Buffer
	require.NoError(t, reportResult(&out, res, nil))

	s := out.String()
	require.Contains(t, s, "[RESULT] status: included included: true")
	require.Contains(t, s, "block  : 1001")
	require.Contains(t, s, common.Hash{0xaa}.Hex())
	require.Contains(t, s, "tx0    : "+common.Hash{0x01}.Hex())
	require.Contains(t, s, "tx1    : "+common.Hash{0x02}.Hex())
}

func TestReportResultExhausted(t *testing.T) {
	var out bytes.Buffer
	err := reportResult(&out, core.Result{Status: core.StatusExhausted, Reason: "exhausted attempts"}, nil)
	require.NoError(t, err)
	require.Equal(t, "[RESULT] status: exhausted included: false reason: exhausted attempts\n", out.String())
}

func TestReportResultFatal(t *testing.T) {
	cause := errors.New("build bundle: nonce unavailable")
	var out bytes.Buffer
	err := reportResult(&out, core.Result{Status: core.StatusFatal, Reason: cause.Error(), Err: cause}, cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, out.String(), "status: fatal")
	require.NotContains(t, out.String(), "bundle :")

	err = reportResult(io.Discard, core.Result{Status: core.StatusFatal, Reason: "canceled"}, nil)
	require.EqualError(t, err, "canceled")
}

func TestMaskHex(t *testing.T) {
	require.Equal(t, "***", maskHex("0x1234"))
	require.Equal(t, "0x4c08…2318", maskHex("0x"+testKey))
}

func TestFormatEther(t *testing.T) {
	require.Equal(t, "0.000000000000000100", formatEther(big.NewInt(100)))
}
