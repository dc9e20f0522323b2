package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type querySource struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

type queryResponse struct {
	Answer    string        `json:"answer"`
	Sources   []querySource `json:"sources"`
	SessionID string        `json:"session_id"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "")
	sessionID := flag.String("session", "", "")
	flag.Parse()
	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Println("usage: ask [-url=http://localhost:8000] [-session=id] your question here")
		os.Exit(1)
	}
	body, err := json.Marshal(queryRequest{Query: query, SessionID: *sessionID})
	if err != nil {
		fmt.Println("encode error:", err)
		os.Exit(1)
	}
	resp, err := http.Post(strings.TrimRight(*baseURL, "/")+"/api/query", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println("request error:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Println("read error:", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Println("server error:", resp.Status, string(raw))
		os.Exit(1)
	}
	var out queryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		fmt.Println("decode error:", err)
		os.Exit(1)
	}
	fmt.Println(out.Answer)
	if len(out.Sources) > 0 {
		fmt.Println()
		fmt.Println("sources:")
		for _, src := range out.Sources {
			if src.Link != "" {
				fmt.Println("  -", src.Text, "("+src.Link+")")
			} else {
				fmt.Println("  -", src.Text)
			}
		}
	}
	fmt.Println()
	fmt.Println("session_id:", out.SessionID)
}
