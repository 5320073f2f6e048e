package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// Stdout is where Print writes; tests swap it.
var Stdout io.Writer = os.Stdout

func DefaultFormat() string {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return "table"
	}
	return "json"
}

// Payload converts a typed response into the generic shape Print renders,
// wrapping it under key when key is non-empty.
func Payload(key string, v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if key == "" {
		out := map[string]any{}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var inner any
	if err := json.Unmarshal(b, &inner); err != nil {
		return nil, err
	}
	if inner == nil {
		inner = []any{}
	}
	return map[string]any{key: inner}, nil
}

func Print(payload map[string]any, format string, quiet bool) error {
	if quiet {
		format = "quiet"
	}
	format = strings.TrimSpace(strings.ToLower(format))
	if format == "" {
		format = DefaultFormat()
	}

	switch format {
	case "json":
		return printJSON(payload)
	case "yaml":
		return printYAML(payload)
	case "table":
		return printTable(payload)
	case "plain":
		return printPlain(payload)
	case "quiet":
		return printQuiet(payload)
	default:
		return errors.New("invalid --format value")
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(Stdout, string(b))
	return err
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func printTable(payload map[string]any) error {
	w := Stdout
	switch {
	case hasKey(payload, "posts"):
		fmt.Fprintln(w, "ID\tAUTHOR\tLIKES\tCOMMENTS\tCREATED\tCONTENT")
		for _, row := range toObjectSlice(payload["posts"]) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				str(row["id"]), str(row["authorName"]), str(row["likes"]), len(toObjectSlice(row["comments"])),
				ago(row["createdAt"]), clip(str(row["content"]), 60))
		}
		if more, ok := payload["hasMore"].(bool); ok && more {
			fmt.Fprintln(w, "-- more --")
		}
	case hasKey(payload, "threads"):
		fmt.Fprintln(w, "ID\tWITH\tUNREAD\tUPDATED\tLAST")
		for _, row := range toObjectSlice(payload["threads"]) {
			other, _ := row["otherUser"].(map[string]any)
			last, _ := row["lastMessage"].(map[string]any)
			unread := ""
			if u, ok := row["unread"].(bool); ok && u {
				unread = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				str(row["id"]), str(other["email"]), unread, ago(row["updatedAt"]), clip(str(last["text"]), 40))
		}
	case hasKey(payload, "messages"):
		for _, row := range toObjectSlice(payload["messages"]) {
			fmt.Fprintf(w, "[%s] %s: %s\n", ago(row["createdAt"]), str(row["senderEmail"]), str(row["text"]))
		}
	case hasKey(payload, "notifications"):
		fmt.Fprintln(w, "ID\tTYPE\tFROM\tREAD\tCREATED\tMESSAGE")
		for _, row := range toObjectSlice(payload["notifications"]) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				str(row["id"]), str(row["type"]), str(row["senderEmail"]), str(row["read"]),
				ago(row["createdAt"]), str(row["message"]))
		}
	case hasKey(payload, "results"):
		fmt.Fprintln(w, "ID\tAUTHOR\tCREATED\tSNIPPET")
		for _, row := range toObjectSlice(payload["results"]) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				str(row["id"]), str(row["authorEmail"]), ago(row["createdAt"]), str(row["snippet"]))
		}
	case hasKey(payload, "users"):
		fmt.Fprintln(w, "EMAIL\tNAME\tJOINED")
		for _, row := range toObjectSlice(payload["users"]) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", str(row["email"]), str(row["fullName"]), ago(row["createdAt"]))
		}
	default:
		return printJSON(payload)
	}
	return nil
}

func printPlain(payload map[string]any) error {
	w := Stdout
	switch {
	case hasKey(payload, "posts"):
		for _, row := range toObjectSlice(payload["posts"]) {
			fmt.Fprintf(w, "%s %s %s\n", str(row["id"]), str(row["authorEmail"]), str(row["content"]))
		}
	case hasKey(payload, "threads"):
		for _, row := range toObjectSlice(payload["threads"]) {
			other, _ := row["otherUser"].(map[string]any)
			fmt.Fprintf(w, "%s %s\n", str(row["id"]), str(other["email"]))
		}
	case hasKey(payload, "messages"):
		for _, row := range toObjectSlice(payload["messages"]) {
			fmt.Fprintf(w, "%s %s %s\n", str(row["id"]), str(row["senderEmail"]), str(row["text"]))
		}
	case hasKey(payload, "notifications"):
		for _, row := range toObjectSlice(payload["notifications"]) {
			fmt.Fprintf(w, "%s %s from=%s\n", str(row["id"]), str(row["type"]), str(row["senderEmail"]))
		}
	case hasKey(payload, "results"):
		for _, row := range toObjectSlice(payload["results"]) {
			fmt.Fprintf(w, "%s %s\n", str(row["id"]), str(row["snippet"]))
		}
	case hasKey(payload, "users"):
		for _, row := range toObjectSlice(payload["users"]) {
			fmt.Fprintf(w, "%s %s\n", str(row["email"]), str(row["fullName"]))
		}
	case hasKey(payload, "email") && hasKey(payload, "fullName"):
		fmt.Fprintf(w, "%s %s\n", str(payload["email"]), str(payload["fullName"]))
	default:
		return printJSON(payload)
	}
	return nil
}

func printQuiet(payload map[string]any) error {
	w := Stdout
	for _, key := range []string{"posts", "threads", "messages", "notifications", "results"} {
		if hasKey(payload, key) {
			for _, row := range toObjectSlice(payload[key]) {
				fmt.Fprintln(w, str(row["id"]))
			}
			return nil
		}
	}
	if hasKey(payload, "users") {
		for _, row := range toObjectSlice(payload["users"]) {
			fmt.Fprintln(w, str(row["email"]))
		}
		return nil
	}
	if id, ok := payload["id"]; ok {
		fmt.Fprintln(w, str(id))
		return nil
	}
	return printJSON(payload)
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func toObjectSlice(v any) []map[string]any {
	in, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(in))
	for _, item := range in {
		if row, ok := item.(map[string]any); ok {
			out = append(out, row)
		}
	}
	return out
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return humanize.Comma(int64(t))
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ago renders an RFC3339 timestamp relative to now.
func ago(v any) string {
	s := str(v)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return humanize.Time(t)
}

func clip(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
