// Command mailx is the interactive client for the mail exchange server.
// All decisions are server-side; the client only prompts, sends requests
// and prints responses.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/infodancer/mailxd/internal/wire"
)

const authMenu = `
1. Register
2. Log in
3. Quit`

const mainMenu = `
1. Read mail
2. Send mail
3. Usage statistics
4. Log out`

func main() {
	addr := flag.String("server", "localhost:2125", "Server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	c := &client{
		conn:  conn,
		input: bufio.NewScanner(os.Stdin),
	}
	if err := c.run(); err != nil {
		fmt.Fprintf(os.Stderr, "connection to server interrupted: %v\n", err)
		os.Exit(1)
	}
}

// client holds the connection and the username of the active session, empty
// while anonymous.
type client struct {
	conn     net.Conn
	input    *bufio.Scanner
	username string
}

func (c *client) run() error {
	for {
		var err error
		if c.username == "" {
			err = c.authMenuOnce()
		} else {
			err = c.mainMenuOnce()
		}
		if err != nil {
			if errors.Is(err, errQuit) {
				// Tell the server we are leaving; no response follows.
				msg, _ := wire.NewMessage(wire.HeaderGoodbye, nil)
				_ = wire.Send(c.conn, msg)
				return nil
			}
			return err
		}
	}
}

// errQuit signals a clean, user-requested exit.
var errQuit = errors.New("quit")

func (c *client) authMenuOnce() error {
	fmt.Println(authMenu)
	switch c.prompt("Enter your choice [1-3]: ") {
	case "1":
		return c.register()
	case "2":
		return c.login()
	case "3", "":
		return errQuit
	default:
		fmt.Println("Invalid choice, try again.")
		return nil
	}
}

func (c *client) mainMenuOnce() error {
	fmt.Println(mainMenu)
	switch c.prompt("Enter your choice [1-4]: ") {
	case "1":
		return c.readMail()
	case "2":
		return c.sendMail()
	case "3":
		return c.stats()
	case "4":
		return c.logout()
	case "":
		return errQuit
	default:
		fmt.Println("Invalid choice, try again.")
		return nil
	}
}

func (c *client) register() error {
	return c.authenticate(wire.HeaderRegister)
}

func (c *client) login() error {
	return c.authenticate(wire.HeaderLogin)
}

// authenticate prompts for credentials, sends them under the given header
// and records the username on success.
func (c *client) authenticate(header wire.Header) error {
	username := c.prompt("Username: ")
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	resp, err := c.call(header, wire.AuthPayload{Username: username, Password: password})
	if err != nil {
		return err
	}
	if printIfError(resp) {
		return nil
	}

	c.username = strings.ToLower(username)
	fmt.Printf("Welcome, %s.\n", c.username)
	return nil
}

func (c *client) readMail() error {
	resp, err := c.call(wire.HeaderListMail, nil)
	if err != nil {
		return err
	}
	if printIfError(resp) {
		return nil
	}

	var list wire.MailListPayload
	if err := resp.DecodePayload(&list); err != nil {
		return err
	}
	if len(list.Entries) == 0 {
		fmt.Println("No mail to read.")
		return nil
	}

	for _, entry := range list.Entries {
		fmt.Println(entry)
	}

	choice, err := strconv.Atoi(c.prompt(fmt.Sprintf("Enter your choice [1-%d]: ", len(list.Entries))))
	if err != nil {
		fmt.Println("Invalid choice.")
		return nil
	}

	resp, err = c.call(wire.HeaderReadMail, wire.ChoicePayload{Choice: choice})
	if err != nil {
		return err
	}
	if printIfError(resp) {
		return nil
	}

	var content wire.EmailContentPayload
	if err := resp.DecodePayload(&content); err != nil {
		return err
	}

	fmt.Printf("\nFrom:    %s\nTo:      %s\nSubject: %s\nDate:    %s\n\n%s\n",
		content.Sender, content.Destination, content.Subject, content.Date, content.Content)
	return nil
}

func (c *client) sendMail() error {
	destination := c.prompt("Recipient address: ")
	subject := c.prompt("Subject: ")

	// The body ends with a single period on its own line.
	fmt.Println("Body (finish with a lone '.'):")
	var body strings.Builder
	for c.input.Scan() {
		line := c.input.Text()
		if line == "." {
			break
		}
		body.WriteString(line)
		body.WriteString("\n")
	}

	resp, err := c.call(wire.HeaderSendMail, wire.EmailContentPayload{
		Destination: destination,
		Subject:     subject,
		Content:     body.String(),
	})
	if err != nil {
		return err
	}
	if !printIfError(resp) {
		fmt.Println("Message sent.")
	}
	return nil
}

func (c *client) stats() error {
	resp, err := c.call(wire.HeaderStats, nil)
	if err != nil {
		return err
	}
	if printIfError(resp) {
		return nil
	}

	var stats wire.StatsPayload
	if err := resp.DecodePayload(&stats); err != nil {
		return err
	}
	fmt.Printf("Messages: %d\nTotal size: %d bytes\n", stats.Count, stats.Size)
	return nil
}

func (c *client) logout() error {
	resp, err := c.call(wire.HeaderLogout, nil)
	if err != nil {
		return err
	}
	if !printIfError(resp) {
		c.username = ""
	}
	return nil
}

// call sends one request and waits for the single response.
func (c *client) call(header wire.Header, payload any) (wire.Message, error) {
	msg, err := wire.NewMessage(header, payload)
	if err != nil {
		return wire.Message{}, err
	}
	if err := wire.Send(c.conn, msg); err != nil {
		return wire.Message{}, err
	}
	return wire.Recv(c.conn)
}

// printIfError prints an error response and reports whether it was one.
func printIfError(msg wire.Message) bool {
	if msg.Header != wire.HeaderError {
		return false
	}
	var payload wire.ErrorPayload
	if err := msg.DecodePayload(&payload); err != nil {
		fmt.Println("Server sent an unreadable error.")
		return true
	}
	fmt.Println(payload.ErrorMessage)
	return true
}

func (c *client) prompt(label string) string {
	fmt.Print(label)
	if !c.input.Scan() {
		return ""
	}
	return strings.TrimSpace(c.input.Text())
}

// promptPassword reads a password without echoing it.
func promptPassword(label string) (string, error) {
	fmt.Print(label)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(data), nil
}
