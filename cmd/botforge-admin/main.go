// ABOUTME: Admin CLI for the botforge API
// ABOUTME: Manages bots, sharing, and sessions over HTTP with JWT auth

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const banner = `
 _           _    __
| |__   ___ | |_ / _| ___  _ __ __ _  ___
| '_ \ / _ \| __| |_ / _ \| '__/ _' |/ _ \
| |_) | (_) | |_|  _| (_) | | | (_| |  __/
|_.__/ \___/ \__|_|  \___/|_|  \__, |\___|
                               |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("BOTFORGE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client := &apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   getToken(),
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "me":
		err = cmdMe(client)
	case "status":
		err = cmdStatus(client)
	case "bots":
		err = cmdBots(client, args)
	case "share":
		err = cmdShare(client, args)
	case "users":
		err = cmdUsers(client, args)
	case "sessions":
		err = cmdSessions(client, args)
	case "chat":
		err = cmdChat(client, args)
	case "search":
		err = cmdSearch(client, args)
	case "usage":
		err = cmdUsage(client, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: botforge-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  me                        Show your identity")
	fmt.Println("  status                    Show server status and your identity")
	fmt.Println("  bots                      List your bots")
	fmt.Println("  bots list                 List your bots (--shared, --public)")
	fmt.Println("  bots create               Create a bot (--name, --model, --prompt)")
	fmt.Println("  bots delete <id>          Delete a bot")
	fmt.Println("  share grant <bot-id>      Grant access (--email, --level view|chat|edit)")
	fmt.Println("  share revoke <bot-id> <user-id>  Revoke a grant")
	fmt.Println("  share list <bot-id>       List grants on a bot")
	fmt.Println("  share public <bot-id>     Toggle public listing (--off to disable)")
	fmt.Println("  users activate <id>       Re-enable an account (admin only)")
	fmt.Println("  users deactivate <id>     Disable an account (admin only)")
	fmt.Println("  sessions                  List your chat sessions")
	fmt.Println("  sessions delete <id>      Delete a session and its messages")
	fmt.Println("  chat <bot-id> [msg]       Chat with a bot (REPL if no message)")
	fmt.Println("  search <query>            Search your messages and sessions")
	fmt.Println("  usage [--days N]          Show token usage totals")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  BOTFORGE_URL    Server base URL (default: http://localhost:8080)")
	fmt.Println("  BOTFORGE_TOKEN  JWT token (falls back to the config dir token file)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export BOTFORGE_TOKEN=\"eyJhbG...\"")
	fmt.Println("  botforge-admin bots create --name 'Helper' --model gemini-2.0-flash")
	fmt.Println("  botforge-admin share grant <bot-id> --email friend@example.com --level chat")
	fmt.Println("  botforge-admin chat <bot-id> 'hello there'")
	fmt.Println()
}

// getToken returns the JWT token from BOTFORGE_TOKEN or the config dir token file
func getToken() string {
	if token := os.Getenv("BOTFORGE_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	tokenPath := filepath.Join(configDir, "botforge", "token")
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

type apiClient struct {
	baseURL string
	token   string
}

type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.message, e.status)
}

// doJSON issues a request and decodes the JSON response into out (if non-nil).
func (c *apiClient) doJSON(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &apiError{status: resp.StatusCode, message: msg}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *apiClient) requireToken() error {
	if c.token == "" {
		return fmt.Errorf("no token: set BOTFORGE_TOKEN or run botforge bootstrap")
	}
	return nil
}

type meResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
}

func cmdMe(c *apiClient) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	var me meResponse
	if err := c.doJSON(http.MethodGet, "/api/me", nil, &me); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	fmt.Println()
	cyan.Println("  Identity")
	cyan.Println("  --------")
	fmt.Printf("  User ID:  %s\n", me.ID)
	fmt.Printf("  Email:    %s\n", me.Email)
	fmt.Printf("  Name:     %s\n", me.DisplayName)
	if me.IsAdmin {
		green.Println("  Admin:    yes")
	}
	fmt.Println()

	return nil
}

func cmdStatus(c *apiClient) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	if err := c.doJSON(http.MethodGet, "/health", nil, nil); err != nil {
		yellow.Printf("  Server:   ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}

	green.Printf("  Server:   ")
	fmt.Printf("connected to %s\n", c.baseURL)

	if c.token != "" {
		var me meResponse
		if err := c.doJSON(http.MethodGet, "/api/me", nil, &me); err != nil {
			yellow.Printf("  Identity: ")
			color.Red("auth failed (%v)\n", err)
		} else {
			green.Printf("  Identity: ")
			fmt.Printf("%s (%s)\n", me.DisplayName, me.Email)
		}
	} else {
		yellow.Printf("  Identity: ")
		fmt.Println("(no token - set BOTFORGE_TOKEN)")
	}

	fmt.Println()
	return nil
}

type botItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ModelName  string `json:"model_name"`
	OwnerID    string `json:"owner_id"`
	IsPublic   bool   `json:"is_public"`
	ShareToken string `json:"share_token"`
	CreatedAt  string `json:"created_at"`
}

func cmdBots(c *apiClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdBotsList(c, args)
	case "create", "add":
		return cmdBotsCreate(c, args)
	case "delete", "rm", "remove":
		return cmdBotsDelete(c, args)
	default:
		return fmt.Errorf("unknown bots subcommand: %s (use list, create, delete)", subcmd)
	}
}

func cmdBotsList(c *apiClient, args []string) error {
	path := "/api/bots"
	var params []string
	for _, arg := range args {
		switch arg {
		case "--shared", "-s":
			params = append(params, "include_shared=true")
		case "--public", "-p":
			params = append(params, "include_public=true")
		}
	}
	if len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}

	var resp struct {
		Bots []botItem `json:"bots"`
	}
	if err := c.doJSON(http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Bots")
	cyan.Println("  ----")

	if len(resp.Bots) == 0 {
		fmt.Println("  (no bots)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tMODEL\tPUBLIC\tCREATED")
	fmt.Fprintln(w, "  --\t----\t-----\t------\t-------")

	for _, b := range resp.Bots {
		public := ""
		if b.IsPublic {
			public = "yes"
		}
		created := b.CreatedAt
		if t, err := time.Parse(time.RFC3339, b.CreatedAt); err == nil {
			created = t.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			truncate(b.ID, 12), truncate(b.Name, 24), b.ModelName, public, created)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdBotsCreate(c *apiClient, args []string) error {
	var name, model, prompt, description string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name", "-n":
			if i+1 < len(args) {
				name = args[i+1]
				i++
			}
		case "--model", "-m":
			if i+1 < len(args) {
				model = args[i+1]
				i++
			}
		case "--prompt", "-p":
			if i+1 < len(args) {
				prompt = args[i+1]
				i++
			}
		case "--description", "-d":
			if i+1 < len(args) {
				description = args[i+1]
				i++
			}
		}
	}

	if name == "" || model == "" {
		return fmt.Errorf("usage: bots create --name <name> --model <model> [--prompt <text>]")
	}

	var bot botItem
	err := c.doJSON(http.MethodPost, "/api/bots", map[string]string{
		"name":          name,
		"model_name":    model,
		"system_prompt": prompt,
		"description":   description,
	}, &bot)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Created bot: %s\n", bot.ID)
	fmt.Printf("  Name:  %s\n", bot.Name)
	fmt.Printf("  Model: %s\n", bot.ModelName)

	return nil
}

func cmdBotsDelete(c *apiClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bots delete <bot-id>")
	}

	botID := args[0]
	if err := c.doJSON(http.MethodDelete, "/api/bots/"+botID, nil, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Deleted bot: %s\n", botID)

	return nil
}

func cmdShare(c *apiClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "grant", "add":
		return cmdShareGrant(c, args)
	case "revoke", "rm", "remove":
		return cmdShareRevoke(c, args)
	case "list", "ls":
		return cmdShareList(c, args)
	case "public":
		return cmdSharePublic(c, args)
	default:
		return fmt.Errorf("usage: share <grant|revoke|list|public> <bot-id> ...")
	}
}

func cmdShareGrant(c *apiClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: share grant <bot-id> --email <email> --level <view|chat|edit>")
	}

	botID := args[0]
	var email, level string
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--email", "-e":
			if i+1 < len(args) {
				email = args[i+1]
				i++
			}
		case "--level", "-l":
			if i+1 < len(args) {
				level = args[i+1]
				i++
			}
		}
	}

	if email == "" {
		return fmt.Errorf("--email is required")
	}
	if level == "" {
		level = "view"
	}

	var grant struct {
		UserID string `json:"user_id"`
		Level  string `json:"level"`
	}
	err := c.doJSON(http.MethodPost, "/api/bots/"+botID+"/share", map[string]string{
		"user_email": email,
		"level":      level,
	}, &grant)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Granted %s access to %s\n", grant.Level, email)
	fmt.Printf("  User ID: %s\n", grant.UserID)

	return nil
}

func cmdShareRevoke(c *apiClient, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: share revoke <bot-id> <user-id>")
	}

	botID, userID := args[0], args[1]
	if err := c.doJSON(http.MethodDelete, "/api/bots/"+botID+"/share/"+userID, nil, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Revoked access for %s\n", userID)

	return nil
}

func cmdShareList(c *apiClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: share list <bot-id>")
	}

	var resp struct {
		Grants []struct {
			UserID string `json:"user_id"`
			Level  string `json:"level"`
		} `json:"grants"`
	}
	if err := c.doJSON(http.MethodGet, "/api/bots/"+args[0]+"/share", nil, &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Grants")
	cyan.Println("  ------")

	if len(resp.Grants) == 0 {
		fmt.Println("  (no grants)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  USER\tLEVEL")
	fmt.Fprintln(w, "  ----\t-----")
	for _, g := range resp.Grants {
		fmt.Fprintf(w, "  %s\t%s\n", g.UserID, g.Level)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdSharePublic(c *apiClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: share public <bot-id> [--off]")
	}

	botID := args[0]
	enable := true
	for _, arg := range args[1:] {
		if arg == "--off" {
			enable = false
		}
	}

	var bot botItem
	err := c.doJSON(http.MethodPatch, "/api/bots/"+botID+"/public",
		map[string]bool{"is_public": enable}, &bot)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	if enable {
		green.Printf("✓ Bot is now public\n")
		if bot.ShareToken != "" {
			fmt.Printf("  Share link: %s/api/bots/share/%s\n", c.baseURL, bot.ShareToken)
		}
	} else {
		green.Printf("✓ Bot is no longer publicly listed\n")
		fmt.Println("  (existing share links keep working)")
	}

	return nil
}

func cmdUsers(c *apiClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: users <activate|deactivate> <user-id>")
	}

	var active bool
	switch args[0] {
	case "activate":
		active = true
	case "deactivate":
		active = false
	default:
		return fmt.Errorf("unknown users subcommand: %s (use activate, deactivate)", args[0])
	}

	userID := args[1]
	var user struct {
		Email    string `json:"email"`
		IsActive bool   `json:"is_active"`
	}
	err := c.doJSON(http.MethodPatch, "/api/users/"+userID+"/status",
		map[string]bool{"is_active": active}, &user)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	if user.IsActive {
		green.Printf("✓ Activated account: %s\n", user.Email)
	} else {
		green.Printf("✓ Deactivated account: %s\n", user.Email)
	}

	return nil
}

func cmdSessions(c *apiClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdSessionsList(c)
	case "delete", "rm", "remove":
		return cmdSessionsDelete(c, args)
	default:
		return fmt.Errorf("unknown sessions subcommand: %s (use list, delete)", subcmd)
	}
}

func cmdSessionsList(c *apiClient) error {
	var resp struct {
		Sessions []struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			MessageCount int    `json:"message_count"`
			UpdatedAt    string `json:"updated_at"`
		} `json:"sessions"`
	}
	if err := c.doJSON(http.MethodGet, "/api/sessions", nil, &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Sessions")
	cyan.Println("  --------")

	if len(resp.Sessions) == 0 {
		fmt.Println("  (no sessions)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tTITLE\tMSGS\tUPDATED")
	fmt.Fprintln(w, "  --\t-----\t----\t-------")
	for _, s := range resp.Sessions {
		updated := s.UpdatedAt
		if t, err := time.Parse(time.RFC3339, s.UpdatedAt); err == nil {
			updated = t.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%d\t%s\n",
			truncate(s.ID, 12), truncate(s.Title, 40), s.MessageCount, updated)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdSessionsDelete(c *apiClient, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sessions delete <session-id>")
	}

	sessionID := args[0]
	if err := c.doJSON(http.MethodDelete, "/api/sessions/"+sessionID, nil, nil); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Deleted session: %s\n", sessionID)

	return nil
}

// cmdChat provides one-shot or interactive chat with a bot
func cmdChat(c *apiClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: chat <bot-id> [message]")
	}

	botID := args[0]

	if len(args) >= 2 {
		message := strings.Join(args[1:], " ")
		_, err := sendTurn(c, botID, "", message)
		return err
	}

	return chatREPL(c, botID)
}

// chatREPL runs an interactive read-eval-print loop. The session carries
// over between turns so the bot keeps its context.
func chatREPL(c *apiClient, botID string) error {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	cyan.Printf("Chat with bot %s (Ctrl+D to exit)\n\n", botID)

	sessionID := ""
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024) // 1MB max input
	for {
		green.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sid, err := sendTurn(c, botID, sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		sessionID = sid
		fmt.Println()
	}
}

// sendTurn posts one chat turn and prints the SSE stream as it arrives.
// Returns the session ID for follow-up turns.
func sendTurn(c *apiClient, botID, sessionID, message string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"bot_id":     botID,
		"session_id": sessionID,
		"message":    message,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return "", &apiError{status: resp.StatusCode, message: msg}
	}

	gotSession := sessionID
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	eventType := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")

		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch eventType {
			case "started":
				var ev struct {
					SessionID string `json:"session_id"`
				}
				if json.Unmarshal([]byte(data), &ev) == nil {
					gotSession = ev.SessionID
				}
			case "text":
				var ev struct {
					Text string `json:"text"`
				}
				if json.Unmarshal([]byte(data), &ev) == nil {
					fmt.Print(ev.Text)
				}
			case "done":
				fmt.Println()
				return gotSession, nil
			case "error":
				var ev struct {
					Error string `json:"error"`
				}
				if json.Unmarshal([]byte(data), &ev) == nil {
					return gotSession, fmt.Errorf("bot error: %s", ev.Error)
				}
				return gotSession, fmt.Errorf("bot error")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return gotSession, fmt.Errorf("reading stream: %w", err)
	}
	fmt.Println()
	return gotSession, nil
}

func cmdSearch(c *apiClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: search <query>")
	}

	query := strings.Join(args, " ")
	var resp struct {
		Messages []struct {
			SessionID    string `json:"session_id"`
			SessionTitle string `json:"session_title"`
			Role         string `json:"role"`
			Snippet      string `json:"snippet"`
		} `json:"messages"`
		Sessions []struct {
			SessionID string `json:"session_id"`
			Title     string `json:"title"`
		} `json:"sessions"`
		TotalMessages int `json:"total_messages"`
	}
	path := "/api/search?scope=all&q=" + url.QueryEscape(query)
	if err := c.doJSON(http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	if len(resp.Sessions) > 0 {
		fmt.Println()
		cyan.Println("  Sessions")
		for _, s := range resp.Sessions {
			fmt.Printf("  %s  %s\n", truncate(s.SessionID, 12), s.Title)
		}
	}

	fmt.Println()
	cyan.Printf("  Messages (%d)\n", resp.TotalMessages)
	if len(resp.Messages) == 0 {
		fmt.Println("  (no matches)")
	}
	for _, m := range resp.Messages {
		gray.Printf("  [%s] %s\n", m.Role, m.SessionTitle)
		fmt.Printf("    %s\n", m.Snippet)
	}
	fmt.Println()

	return nil
}

func cmdUsage(c *apiClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	path := "/api/usage/summary"
	for i := 0; i < len(args); i++ {
		if args[i] == "--days" || args[i] == "-d" {
			if i+1 < len(args) {
				path += "?days=" + args[i+1]
				i++
			}
		}
	}

	var resp struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
		RequestCount     int `json:"request_count"`
	}
	if err := c.doJSON(http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Token Usage")
	cyan.Println("  -----------")
	fmt.Printf("  Requests:   %d\n", resp.RequestCount)
	fmt.Printf("  Prompt:     %d\n", resp.PromptTokens)
	fmt.Printf("  Completion: %d\n", resp.CompletionTokens)
	fmt.Printf("  Total:      %d\n", resp.TotalTokens)
	fmt.Println()

	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
