package commands

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSlashLine turns a raw "/command arg..." line into a Request. It
// backs the console channel; Discord builds requests from typed
// interaction options instead.
func ParseSlashLine(userID, line string) (Request, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Request{}, fmt.Errorf("not a command: %q", line)
	}

	name := strings.TrimPrefix(fields[0], "/")
	args := fields[1:]
	req := Request{UserID: userID}

	switch name {
	case "begin":
		req.Kind = KindBegin
	case "config":
		req.Kind = KindConfig
	case "help":
		req.Kind = KindHelp
	case "stop":
		req.Kind = KindStop
	case "export_data":
		req.Kind = KindExportData
	case "disable_clockify":
		req.Kind = KindDisableClockify
	case "set_time":
		if len(args) != 2 {
			return Request{}, fmt.Errorf("usage: /set_time <morning_check|evening_review> <hour>")
		}
		hour, err := strconv.Atoi(args[1])
		if err != nil {
			return Request{}, fmt.Errorf("hour must be a number, got %q", args[1])
		}
		req.Kind = KindSetTime
		req.Args.CheckType = args[0]
		req.Args.Hour = hour
	case "set_weekly_review":
		if len(args) != 2 {
			return Request{}, fmt.Errorf("usage: /set_weekly_review <day> <hour>")
		}
		hour, err := strconv.Atoi(args[1])
		if err != nil {
			return Request{}, fmt.Errorf("hour must be a number, got %q", args[1])
		}
		req.Kind = KindSetWeeklyReview
		req.Args.Day = args[0]
		req.Args.Hour = hour
	case "set_check_probability":
		if len(args) != 1 {
			return Request{}, fmt.Errorf("usage: /set_check_probability <0.0-1.0>")
		}
		p, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return Request{}, fmt.Errorf("probability must be a number, got %q", args[0])
		}
		req.Kind = KindSetCheckProbability
		req.Args.Probability = p
	case "set_timezone":
		if len(args) != 1 {
			return Request{}, fmt.Errorf("usage: /set_timezone <IANA name, e.g. Europe/Berlin>")
		}
		req.Kind = KindSetTimezone
		req.Args.Timezone = args[0]
	case "set_clockify":
		if len(args) != 1 {
			return Request{}, fmt.Errorf("usage: /set_clockify <api_key>")
		}
		req.Kind = KindSetClockify
		req.Args.APIKey = args[0]
	case "trigger_check":
		if len(args) != 1 {
			return Request{}, fmt.Errorf("usage: /trigger_check <morning|evening|weekly|activity>")
		}
		req.Kind = KindTriggerCheck
		req.Args.TriggerKind = args[0]
	default:
		return Request{}, fmt.Errorf("unknown command /%s, try /help", name)
	}

	return req, nil
}
