// Package termination reports the error that stopped the process to a
// termination log, where orchestrators surface it.
package termination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	log "github.com/fuselabs/fusequery/internal/logging"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

const (
	terminationLogFlagName  = "termination-log-path"
	kubeTerminationLogLimit = 4096
)

// Report is the payload written to the termination log.
type Report struct {
	Error    string            `json:"error"`
	Kind     string            `json:"kind"`
	Code     string            `json:"code"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewReport describes err.
func NewReport(err error) Report {
	r := Report{
		Error: err.Error(),
		Kind:  fuseerrors.KindOf(err).String(),
		Code:  fuseerrors.GRPCStatus(err).Code().String(),
	}

	var withMetadata fuseerrors.HasMetadata
	if errors.As(err, &withMetadata) {
		r.Metadata = withMetadata.DetailsMetadata()
	}
	return r
}

// PublishError returns a new wrapping cobra run function that executes the
// provided runFunc and writes the error it returns, if any, to the
// termination log.
func PublishError(runFunc cobrautil.CobraRunFunc) cobrautil.CobraRunFunc {
	return func(cmd *cobra.Command, args []string) error {
		runFuncErr := runFunc(cmd, args)
		if runFuncErr == nil {
			return nil
		}

		ctx := context.Background()
		if cmd.Context() != nil {
			ctx = cmd.Context()
		}
		terminationLogPath := cobrautil.MustGetString(cmd, terminationLogFlagName)
		if terminationLogPath == "" {
			return runFuncErr
		}

		report := NewReport(runFuncErr)
		bytes, err := json.Marshal(report)
		if err != nil {
			log.Ctx(ctx).Error().Err(fmt.Errorf("unable to marshall termination log: %w", err)).Msg("failed to report termination log")
			return runFuncErr
		}

		if len(bytes) > kubeTerminationLogLimit {
			log.Ctx(ctx).Warn().Msg("termination log exceeds 4096 bytes limit, metadata will be truncated")
			report.Metadata = nil
			bytes, err = json.Marshal(report)
			if err != nil {
				return runFuncErr
			}
		}

		if _, err := os.Stat(path.Dir(terminationLogPath)); os.IsNotExist(err) {
			if mkdirErr := os.MkdirAll(path.Dir(terminationLogPath), 0o700); mkdirErr != nil {
				log.Ctx(ctx).Error().Err(fmt.Errorf("unable to create directory for termination log: %w", mkdirErr)).Msg("failed to report termination log")
				return runFuncErr
			}
		}
		if err := os.WriteFile(terminationLogPath, bytes, 0o600); err != nil {
			log.Ctx(ctx).Error().Err(fmt.Errorf("unable to write terminationlog file: %w", err)).Msg("failed to report termination log")
		}
		return runFuncErr
	}
}

// RegisterFlags registers the termination log flag
func RegisterFlags(flagset *flag.FlagSet) {
	flagset.String(terminationLogFlagName,
		"",
		"define the path to the termination log file, which contains a JSON payload to surface as reason for termination - disabled by default",
	)
}
