package logic

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/term"

	"github.com/vaultea/teax/internal/config"
)

// ErrEmptyPassword is returned when the resolved password is empty.
var ErrEmptyPassword = errors.New("empty password is not allowed")

// ResolvePassword returns the password from, in order: the flag or TEAX_PASSWORD,
// the first line of the password file, an interactive prompt on in.
// The prompt asks twice when confirm is set.
func ResolvePassword(cfg *config.Config, in *os.File, out io.Writer, confirm bool) (string, error) {
	switch {
	case cfg.Password != "":
		return cfg.Password, nil
	case cfg.PasswordFile != "":
		return readPasswordFile(cfg.PasswordFile)
	default:
		return promptPassword(in, out, confirm)
	}
}

func readPasswordFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening password file: %w", err)
	}
	defer file.Close()

	line, err := bufio.NewReader(file).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password file: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", ErrEmptyPassword
	}

	return password, nil
}

func promptPassword(in *os.File, out io.Writer, confirm bool) (string, error) {
	fd := int(in.Fd()) //nolint:gosec // fd fits in int

	if !term.IsTerminal(fd) {
		return "", errors.New("no password given and stdin is not a terminal, use --password-file or TEAX_PASSWORD")
	}

	fmt.Fprint(out, "Password: ")

	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	defer memguard.WipeBytes(first)

	if len(first) == 0 {
		return "", ErrEmptyPassword
	}

	if confirm {
		fmt.Fprint(out, "Confirm password: ")

		second, err := term.ReadPassword(fd)
		fmt.Fprintln(out)

		if err != nil {
			return "", fmt.Errorf("reading password confirmation: %w", err)
		}
		defer memguard.WipeBytes(second)

		if subtle.ConstantTimeCompare(first, second) != 1 {
			return "", errors.New("passwords do not match")
		}
	}

	return string(first), nil
}
