// LineRelay client - a terminal client for the LineRelay chat protocol.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/linerelay/linerelay/internal/chat"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "linerelay-client: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("linerelay-client", flag.ContinueOnError)

	serverAddr := fs.StringP("server", "s", "localhost:50000", "Chat server address")
	username := fs.StringP("username", "U", "", "Username (prompted if empty)")
	password := fs.String("password", "", "Password (prompted securely if empty)")

	var showHelp bool
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		fs.PrintDefaults()
		return nil
	}

	stdin := bufio.NewReader(os.Stdin)

	name := strings.TrimSpace(*username)
	if name == "" {
		fmt.Print("Username: ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		name = strings.TrimSpace(line)
	}
	if name == "" {
		return fmt.Errorf("username must not be empty")
	}

	pass := *password
	if pass == "" {
		var err error
		pass, err = promptPassword(stdin)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", *serverAddr, err)
	}
	defer conn.Close()

	// The server expects the hashed credential, never the raw password.
	login := name + chat.CredentialSeparator + chat.HashPassword(pass)
	if _, err := fmt.Fprintln(conn, login); err != nil {
		return fmt.Errorf("send credentials: %w", err)
	}

	server := bufio.NewScanner(conn)
	if !server.Scan() {
		if err := server.Err(); err != nil {
			return fmt.Errorf("read login verdict: %w", err)
		}
		return fmt.Errorf("server closed the connection during login")
	}

	verdict := server.Text()
	fmt.Println(verdict)
	if verdict != chat.LoginOK {
		return fmt.Errorf("login rejected")
	}

	// Server lines to stdout until the connection ends.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for server.Scan() {
			fmt.Println(server.Text())
		}
	}()

	// Stdin lines to the server until EOF or the server hangs up.
	input := make(chan string)
	go func() {
		defer close(input)
		for {
			line, err := stdin.ReadString('\n')
			if err != nil {
				return
			}
			input <- strings.TrimRight(line, "\r\n")
		}
	}()

	for {
		select {
		case <-done:
			fmt.Println("Disconnected from server")
			return nil
		case line, ok := <-input:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if _, err := fmt.Fprintln(conn, line); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
}

// promptPassword reads the password without echo when stdin is a terminal,
// falling back to a plain line read when it is piped.
func promptPassword(stdin *bufio.Reader) (string, error) {
	fmt.Print("Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
