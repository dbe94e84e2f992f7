package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/jwulff/pyroshow-go/internal/daemon"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: debug <host:port> <command> [show-id | zone target]")
		fmt.Println("Commands: load_show, unload_show, manual_fire, start_show, stop_show, arm, disarm")
		os.Exit(1)
	}
	addr := os.Args[1]

	var showID, target int
	var zone string
	switch daemon.CommandType(os.Args[2]) {
	case daemon.CommandLoadShow:
		if len(os.Args) > 3 {
			showID, _ = strconv.Atoi(os.Args[3])
		}
	case daemon.CommandManualFire:
		if len(os.Args) > 4 {
			zone = os.Args[3]
			target, _ = strconv.Atoi(os.Args[4])
		}
	}

	cmd, err := daemon.ParseCommand(os.Args[2], showID, zone, target)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	data, _ := json.MarshalIndent(cmd, "", "  ")
	fmt.Println("Command structure:")
	fmt.Printf("  Type: %s\n", cmd.Type)
	fmt.Printf("  ShowID: %d\n", cmd.ShowID)
	fmt.Printf("  Zone: %q\n", cmd.Zone)
	fmt.Printf("  Target: %d\n", cmd.Target)
	fmt.Printf("  Full JSON:\n%s\n", data)

	// Send to daemon
	jsonData, _ := json.Marshal(cmd)
	url := fmt.Sprintf("http://%s/api/command", addr)
	fmt.Printf("\nSending to %s...\n", url)

	resp, err := http.Post(url, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(body))
}
