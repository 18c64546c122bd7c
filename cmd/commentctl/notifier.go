package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/UkralStul/commentsync/internal/session"
)

// writerNotifier печатает итоги операций: ошибки в errOut, успехи в out.
type writerNotifier struct {
	out    io.Writer
	errOut io.Writer
}

func (n writerNotifier) Error(message string) {
	fmt.Fprintf(n.errOut, "error: %s\n", message)
}

func (n writerNotifier) Success(message string) {
	fmt.Fprintln(n.out, message)
}

// errReported - пользователь уже увидел сообщение об ошибке от notifier.
var errReported = errors.New("operation failed")

// reported помечает ошибку операции сессии как уже показанную.
func reported(err error) error {
	if errors.Is(err, session.ErrInFlight) || errors.Is(err, session.ErrNoPost) {
		return err
	}
	return fmt.Errorf("%w: %w", errReported, err)
}
