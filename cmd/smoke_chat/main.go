// Command smoke_chat drives a running server through one session: upload,
// a few questions, a data operation, the version list and cleanup.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	base string
	http *http.Client
}

func (c *client) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: %s: undecodable body", method, path, resp.Status)
	}
	if !env.Success {
		return fmt.Errorf("%s %s: %d %s", method, path, env.Code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func sampleRows() []map[string]interface{} {
	regions := []string{"North", "South", "East"}
	rows := make([]map[string]interface{}, 0, 12)
	for m := 1; m <= 12; m++ {
		row := map[string]interface{}{
			"Month":    fmt.Sprintf("2024-%02d", m),
			"Revenue":  100 + m*7 + (m%3)*11,
			"AdSpend":  20 + m*2,
			"Visitors": 1000 + m*55,
			"Region":   regions[m%3],
		}
		if m == 5 {
			row["AdSpend"] = nil
		}
		rows = append(rows, row)
	}
	return rows
}

func main() {
	base := flag.String("url", "http://localhost:3000/api/chat/v1", "chat API base URL")
	keep := flag.Bool("keep", false, "keep the session afterwards")
	flag.Parse()

	c := &client{base: *base, http: &http.Client{Timeout: 3 * time.Minute}}
	failed := false
	step := func(name string, err error) bool {
		if err != nil {
			color.Red("FAIL %s: %v", name, err)
			failed = true
			return false
		}
		color.Green("ok   %s", name)
		return true
	}

	var session struct {
		Id string `json:"id"`
	}
	if !step("create session", c.do(http.MethodPost, "/session", map[string]interface{}{
		"title": "smoke test",
		"rows":  sampleRows(),
	}, &session)) {
		os.Exit(1)
	}
	color.Cyan("session %s", session.Id)

	questions := []string{
		"hello",
		"What is the average Revenue?",
		"What affects Revenue?",
		"Show Revenue by Month",
		"compare Revenue across Region",
		"remove rows with null AdSpend",
	}
	for _, q := range questions {
		var res struct {
			Answer string `json:"answer"`
			Intent struct {
				Type string `json:"type"`
			} `json:"intent"`
			Handler         string            `json:"handler"`
			Charts          []json.RawMessage `json:"charts"`
			Degraded        bool              `json:"degraded"`
			DegradedReasons []string          `json:"degraded_reasons"`
		}
		if !step("send "+q, c.do(http.MethodPost, "/send", map[string]interface{}{
			"chat_session_id": session.Id,
			"chat":            q,
		}, &res)) {
			continue
		}
		if res.Answer == "" {
			step("non-empty answer for "+q, fmt.Errorf("empty answer"))
		}
		fmt.Printf("     intent=%s handler=%s charts=%d", res.Intent.Type, res.Handler, len(res.Charts))
		if res.Degraded {
			color.New(color.FgYellow).Printf(" degraded=%v", res.DegradedReasons)
		}
		fmt.Println()
	}

	var history []json.RawMessage
	if step("history", c.do(http.MethodGet, "/session/"+session.Id+"/history", nil, &history)) && len(history) != 2*len(questions) {
		step("history length", fmt.Errorf("got %d messages, want %d", len(history), 2*len(questions)))
	}

	var versions []struct {
		Version   int    `json:"version"`
		RowCount  int    `json:"row_count"`
		Operation string `json:"operation"`
	}
	if step("versions", c.do(http.MethodGet, "/session/"+session.Id+"/versions", nil, &versions)) {
		for _, v := range versions {
			fmt.Printf("     v%d rows=%d %s\n", v.Version, v.RowCount, v.Operation)
		}
	}

	if !*keep {
		step("delete session", c.do(http.MethodDelete, "/session/"+session.Id, nil, nil))
	}

	if failed {
		os.Exit(1)
	}
}
