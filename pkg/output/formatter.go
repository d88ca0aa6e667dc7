package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lcalzada-xor/cgiscope/pkg/models"
)

const (
	cPurple      = "\x1b[38;5;129m"
	cLightPurple = "\x1b[38;5;141m"
	cDarkPurple  = "\x1b[38;5;93m"
	cRed         = "\x1b[38;5;196m"
	cOrange      = "\x1b[38;5;214m"
	cGreen       = "\x1b[38;5;120m"
	cReset       = "\x1b[0m"
)

// Format returns the formatted result string based on the selected format
func Format(res models.Result, format string) string {
	switch format {
	case "url":
		return res.URL

	case "human":
		return human(res)

	case "json":
		output, err := json.Marshal(res)
		if err != nil {
			// Return error as JSON instead of empty string
			return fmt.Sprintf("{\"error\":\"failed to marshal result: %v\"}", err)
		}
		return string(output)

	default:
		return res.URL
	}
}

func human(res models.Result) string {
	var sb strings.Builder

	if res.Passed {
		sb.WriteString(fmt.Sprintf("\n%s[+] %s check passed%s\n", cGreen, res.Check, cReset))
	} else {
		sb.WriteString(fmt.Sprintf("\n%s[-] %s check failed%s\n", cPurple, res.Check, cReset))
	}
	sb.WriteString(fmt.Sprintf("    %sURL:%s        %s%s%s\n", cDarkPurple, cReset, cLightPurple, res.URL, cReset))
	sb.WriteString(fmt.Sprintf("    %sMethod:%s     %s%s%s\n", cDarkPurple, cReset, cLightPurple, res.Method, cReset))

	statusColor := cLightPurple
	if res.HTTPStatus >= 400 || res.HTTPStatus == 0 {
		statusColor = cRed
	} else if res.HTTPStatus >= 300 {
		statusColor = cOrange
	}
	sb.WriteString(fmt.Sprintf("    %sHTTP Status:%s %s%d%s\n", cDarkPurple, cReset, statusColor, res.HTTPStatus, cReset))

	if res.Check == models.CheckIntrospection {
		sb.WriteString(fmt.Sprintf("    %sVariables:%s  %s%d%s\n", cDarkPurple, cReset, cLightPurple, res.Variables, cReset))
		sb.WriteString(fmt.Sprintf("    %sRandom:%s     %s%d%s\n", cDarkPurple, cReset, cLightPurple, res.RandomNumber, cReset))
		if res.SecurityHeaders.CSP != "" {
			sb.WriteString(fmt.Sprintf("    %sCSP:%s        %s%s%s\n", cDarkPurple, cReset, cLightPurple, res.SecurityHeaders.CSP, cReset))
		}
		for _, r := range res.Reflections {
			sb.WriteString(fmt.Sprintf("    %sReflection:%s %s%s %s reflected=%v context=%s unfiltered=%v%s\n",
				cDarkPurple, cReset, cLightPurple, r.InjectionType, r.Parameter, r.Reflected, r.Context, r.Unfiltered, cReset))
		}
	}

	for _, p := range res.Problems {
		sb.WriteString(fmt.Sprintf("      %s- %s%s\n", cRed, p, cReset))
	}
	return sb.String()
}

// Summary holds the totals printed once a probe run completes.
type Summary struct {
	Targets  int   `json:"targets"`
	Checks   int   `json:"checks"`
	Failed   int   `json:"failed"`
	Requests int64 `json:"requests"`
}

// FormatSummary renders the closing statistics line.
func FormatSummary(s Summary) string {
	return fmt.Sprintf("[*] Probe complete: %d targets processed, %d checks run, %d failed, %d HTTP requests",
		s.Targets, s.Checks, s.Failed, s.Requests)
}
