// SPDX-License-Identifier: Apache-2.0

// Package doctor turns a failed run into an actionable terminal report:
// error classification, trace id, version info and suggested resolution
// steps.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/automa-saga/automa"
	"github.com/joomcode/errorx"

	"github.com/cndeploy/nodeprep/internal/config"
	"github.com/cndeploy/nodeprep/internal/firewall"
	"github.com/cndeploy/nodeprep/internal/swap"
	"github.com/cndeploy/nodeprep/internal/version"
	"github.com/cndeploy/nodeprep/pkg/logx"
	"github.com/cndeploy/nodeprep/pkg/plock"
)

// ErrPropertyResolution lets any error carry its own resolution text, shown
// in place of the type-based suggestions below.
var ErrPropertyResolution = errorx.RegisterPrintableProperty("resolution")

// ANSI codes used by the CheckErr report
const (
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiWhite  = "\033[37m"
	ansiGray   = "\033[90m"
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
)

type ErrorDiagnosis struct {
	Error      error    `yaml:"error" json:"error"`
	Message    string   `yaml:"message" json:"message"`
	Cause      string   `yaml:"cause" json:"cause"`
	ErrorType  string   `yaml:"errorType" json:"errorType"`
	TraceId    string   `yaml:"traceId" json:"traceId"`
	Commit     string   `yaml:"commit" json:"commit"`
	Version    string   `yaml:"version" json:"version"`
	Pid        int      `yaml:"pid" json:"pid"`
	Code       int      `yaml:"code" json:"code"`
	Resolution []string `yaml:"steps" json:"steps"`
}

func toErrorCode(err error) int {
	switch {
	case errorx.IsOfType(err, config.ErrInvalid), errorx.IsOfType(err, errorx.IllegalArgument):
		return 10400
	case errorx.IsOfType(err, plock.ErrLockHeld):
		return 10409
	default:
		if errorx.HasTrait(err, errorx.NotFound()) {
			return 10404
		}
		return 10500
	}
}

func toErrorMessage(err error) (string, string) {
	e := errorx.Cast(err)
	if e == nil {
		return err.Error(), ""
	}

	return e.Message(), fmt.Sprintf("%s", e.Cause())
}

func findResolution(err error) []string {
	if resolution, ok := errorx.ExtractProperty(err, ErrPropertyResolution); ok {
		return []string{fmt.Sprintf("%v", resolution)}
	}

	switch {
	case errorx.IsOfType(err, config.ErrInvalid):
		return []string{"Fix the reported configuration value and run the command again."}
	case errorx.IsOfType(err, config.ErrLoadFailed):
		return []string{"Ensure the configuration file exists, is valid YAML and is readable."}
	case errorx.IsOfType(err, plock.ErrLockHeld):
		return []string{"Another nodeprep run is in progress on this host. Wait for it to finish and retry."}
	case errorx.IsOfType(err, swap.ObservationError):
		return []string{"Host swap state could not be read. Check /proc/swaps and /etc/fstab permissions."}
	case errorx.IsOfType(err, swap.ActionError):
		if action, ok := errorx.ExtractProperty(err, swap.ActionProperty); ok {
			return []string{fmt.Sprintf("Swap action %v failed. Inspect the command output above and re-run; completed actions are safe to repeat.", action)}
		}
		return []string{"A swap action failed. Re-run after fixing the underlying issue; completed actions are safe to repeat."}
	case errorx.IsOfType(err, firewall.ErrNoBackend):
		return []string{"No firewall backend could be found or installed. Install ufw, firewalld or iptables manually."}
	default:
		return []string{"Check error message for details or contact support"}
	}
}

// Diagnose attempts to find a resolution and provide a human friendly error response
func Diagnose(ctx context.Context, ex error) *ErrorDiagnosis {
	var traceId string
	if ctx.Value("traceId") != nil {
		traceId = ctx.Value("traceId").(string)
	}

	msg, cause := toErrorMessage(ex)
	return &ErrorDiagnosis{
		Error:      ex,
		ErrorType:  errorx.GetTypeName(ex),
		Message:    msg,
		Cause:      cause,
		TraceId:    traceId,
		Code:       toErrorCode(ex),
		Commit:     version.Commit(),
		Version:    version.Number(),
		Pid:        os.Getpid(),
		Resolution: findResolution(ex),
	}
}

// CheckErr prints diagnosis and exits with error code 1.
// Optional instructions can be provided to give additional context to the user.
func CheckErr(ctx context.Context, err error, instructions ...string) {
	logx.As().Error().Err(err).Msg("error occurred")
	fmt.Printf("%+v\n", err)
	resp := Diagnose(ctx, err)

	fmt.Printf("\n%s%s************************************** Error Diagnostics ******************************************%s\n", ansiBold, ansiRed, ansiReset)
	fmt.Printf("%s*%s\t%sError:%s %s\n", ansiRed, ansiReset, ansiBold+ansiWhite, ansiReset, resp.Message)
	if resp.Cause != "" {
		fmt.Printf("%s*%s\t%sCause:%s %s\n", ansiRed, ansiReset, ansiBold+ansiWhite, ansiReset, resp.Cause)
	}
	fmt.Printf("%s*%s\t%sError Type:%s %s\n", ansiRed, ansiReset, ansiBold+ansiWhite, ansiReset, resp.ErrorType)
	fmt.Printf("%s*%s\t%sError Code:%s %d\n", ansiRed, ansiReset, ansiBold+ansiWhite, ansiReset, resp.Code)
	fmt.Printf("%s*%s\t%sCommit:%s %s\n", ansiRed, ansiReset, ansiGray, ansiReset, resp.Commit)
	fmt.Printf("%s*%s\t%sPid:%s %d\n", ansiRed, ansiReset, ansiGray, ansiReset, resp.Pid)
	fmt.Printf("%s*%s\t%sTraceId:%s %s\n", ansiRed, ansiReset, ansiGray, ansiReset, resp.TraceId)
	fmt.Printf("%s*%s\t%sVersion:%s %s\n", ansiRed, ansiReset, ansiGray, ansiReset, resp.Version)
	fmt.Printf("%s%s***************************************************************************************************%s\n", ansiBold, ansiRed, ansiReset)
	fmt.Printf("\n%s%s****************************************** Resolution *********************************************%s\n", ansiBold, ansiYellow, ansiReset)

	// Print custom instructions first if provided
	if len(instructions) > 0 && instructions[0] != "" {
		for _, line := range strings.Split(instructions[0], "\n") {
			if line == "" {
				fmt.Printf("%s*%s\n", ansiYellow, ansiReset)
			} else {
				fmt.Printf("%s*%s\t%s\n", ansiYellow, ansiReset, ansiBold+ansiWhite+line+ansiReset)
			}
		}
		if len(resp.Resolution) > 0 {
			fmt.Printf("%s*%s\n", ansiYellow, ansiReset)
		}
	}

	for _, r := range resp.Resolution {
		fmt.Printf("%s*%s\t%s\n", ansiYellow, ansiReset, ansiWhite+r+ansiReset)
	}

	fmt.Printf("%s%s***************************************************************************************************%s\n", ansiBold, ansiYellow, ansiReset)

	os.Exit(1)
}

// GetInstructionsFromReport recursively searches for instructions in report metadata.
// Returns the first non-empty instructions found in the report tree, or an empty string if none exist.
func GetInstructionsFromReport(report *automa.Report) string {
	if report == nil {
		return ""
	}

	if instructions, ok := report.Metadata["instructions"]; ok {
		return instructions
	}

	for _, stepReport := range report.StepReports {
		if instructions := GetInstructionsFromReport(stepReport); instructions != "" {
			return instructions
		}
	}

	return ""
}
