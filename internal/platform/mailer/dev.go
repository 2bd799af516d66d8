package mailer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/diagnosis/natours/pkg/logger"
)

// DevMailer prints messages instead of delivering them.
type DevMailer struct {
	out io.Writer
}

func NewDevMailer(out io.Writer) *DevMailer {
	if out == nil {
		out = os.Stdout
	}
	return &DevMailer{out: out}
}

func (d *DevMailer) Send(ctx context.Context, msg Message) (string, error) {
	logger.InfoContext(ctx, "[DEV MAIL]", "to", msg.To, "subject", msg.Subject)

	fmt.Fprintf(d.out, "\n"+
		"------------------------------------------------------------\n"+
		"EMAIL (DEV MODE)\n"+
		"------------------------------------------------------------\n"+
		"To: %s (%s)\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"------------------------------------------------------------\n\n",
		msg.To, msg.ToName, msg.Subject, msg.Text)
	return "", nil
}
