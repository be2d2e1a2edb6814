package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/nats-io/nats.go"
)

const (
	opsPrefix      = "refinery.ops."
	requestTimeout = 30 * time.Second
)

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(nc *nats.Conn, op string, body interface{}) (map[string]interface{}, error) {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}

	msg, err := nc.Request(opsPrefix+op, payload, requestTimeout)
	if err != nil {
		return nil, err
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		return nil, fmt.Errorf("malformed reply on %s: %w", op, err)
	}
	return decoded, nil
}

func main() {
	color.Cyan("🚀 Starting Refinery NATS API Test\n")

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	nc, err := nats.Connect(natsURL)
	if err != nil {
		color.Red("Failed to connect to NATS at %s: %v", natsURL, err)
		os.Exit(1)
	}
	defer nc.Close()

	// 1. List Companion Kinds
	color.Yellow("\n[OPS] 1. List Companion Kinds")
	kindsResp, err := sendRequest(nc, "kinds", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	prettyPrint(kindsResp)

	// 2. Server-Mode Draft
	color.Yellow("\n[USER] 2. Draft (synthesis kind)")
	draftReq := map[string]interface{}{
		"companion_kind": "synthesis",
		"query":          "Write a short launch announcement for a latency-reducing cache layer.",
	}
	draftResp, err := sendRequest(nc, "draft", draftReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %v", draftResp["status"])

	var sessionID string
	if id, ok := draftResp["session_id"].(string); ok {
		sessionID = id
		fmt.Printf("Session ID: %s\n", sessionID)
	}
	fmt.Printf("Draft: %v\n", draftResp["content"])

	if sessionID == "" {
		color.Red("Aborting: draft did not return a session id")
		os.Exit(1)
	}

	// 3. Critique the Draft
	color.Yellow("\n[USER] 3. Critique")
	critiqueResp, err := sendRequest(nc, "critique", map[string]interface{}{
		"session_id":     sessionID,
		"companion_kind": "synthesis",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %v", critiqueResp["status"])
	fmt.Printf("Critique: %v\n", critiqueResp["content"])
	if stop, ok := critiqueResp["stop_signal"].(bool); ok && stop {
		fmt.Println("Critique carries a stop signal, revision would be skipped by the loop.")
	}

	// 4. Revise
	color.Yellow("\n[USER] 4. Revise")
	reviseResp, err := sendRequest(nc, "revise", map[string]interface{}{
		"session_id":     sessionID,
		"companion_kind": "synthesis",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %v", reviseResp["status"])
	fmt.Printf("Revision: %v\n", reviseResp["content"])
	if sim, ok := reviseResp["similarity"].(float64); ok {
		fmt.Printf("Similarity vs previous: %.4f (converged: %v)\n", sim, reviseResp["converged"])
	}

	// 5. Inspect the Run Log
	color.Yellow("\n[OPS] 5. Run Log")
	runlogResp, err := sendRequest(nc, "runlog", map[string]interface{}{
		"session_id": sessionID,
	})
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		if slots, ok := runlogResp["run_log"].([]interface{}); ok {
			fmt.Printf("Slots: %d\n", len(slots))
		}
		prettyPrint(runlogResp)
	}

	// 6. Render the Transcript
	color.Yellow("\n[OPS] 6. Transcript")
	transcriptResp, err := sendRequest(nc, "transcript", map[string]interface{}{
		"session_id": sessionID,
	})
	if err != nil {
		color.Red("Failed: %v", err)
	} else if text, ok := transcriptResp["transcript"].(string); ok {
		fmt.Println(text)
	}

	// 7. Session Metadata
	color.Yellow("\n[OPS] 7. Session Metadata")
	metaResp, err := sendRequest(nc, "metadata", map[string]interface{}{
		"session_id": sessionID,
	})
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		prettyPrint(metaResp)
	}

	color.Cyan("\n✅ Test Sequence Complete")
}
