// Command mail-submit queues one send request from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/sungwon/mail-dispatch/internal/config"
	"github.com/sungwon/mail-dispatch/internal/logger"
	"github.com/sungwon/mail-dispatch/internal/sequence"
	"github.com/sungwon/mail-dispatch/internal/storage"
	"github.com/sungwon/mail-dispatch/internal/submit"
	"github.com/sungwon/mail-dispatch/internal/template"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type keyValueMap map[string]any

func (m keyValueMap) String() string { return "" }

func (m keyValueMap) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	m[key] = value
	return nil
}

func main() {
	var to, cc, bcc, attach stringList
	placeholders := keyValueMap{}
	configPath := flag.String("config", "config", "path to the config directory")
	from := flag.String("from", "", "sender address")
	subject := flag.String("subject", "", "message subject")
	body := flag.String("body", "", "message body (ignored with -body-file)")
	bodyFile := flag.String("body-file", "", "read the message body from this file")
	patternID := flag.String("pattern", "", "routing pattern id")
	templateID := flag.String("template", "", "submit from this stored template id")
	lang := flag.String("lang", "en", "template language")
	blended := flag.Bool("blended", false, "template body is a blended subject/body string")
	flag.Var(&to, "to", "TO recipient (repeatable)")
	flag.Var(&cc, "cc", "CC recipient (repeatable)")
	flag.Var(&bcc, "bcc", "BCC recipient (repeatable)")
	flag.Var(&attach, "attach", "attachment file path (repeatable)")
	flag.Var(placeholders, "set", "template placeholder as name=value (repeatable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	ctx := context.Background()
	db, err := storage.NewDB(ctx, cfg.Database.URL, cfg.Database.PoolMin, cfg.Database.PoolMax, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	queries := storage.New(db.Pool)
	resolver := template.NewResolver(queries, cfg.Mail.TemplateDelimiter)
	submitter := submit.New(db, sequence.NewPGSequencer(queries), resolver, submit.Config{
		DefaultCharset:    cfg.Mail.DefaultCharset,
		DefaultReplyTo:    cfg.Mail.DefaultReplyTo,
		DefaultReturnPath: cfg.Mail.DefaultReturnPath,
		MaxRecipients:     cfg.Mail.MaxRecipients,
		MaxAttachedBytes:  cfg.Mail.MaxAttachedBytes,
		SequenceScope:     cfg.Mail.SequenceScope,
	}, log)

	text := *body
	if *bodyFile != "" {
		content, err := os.ReadFile(*bodyFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", *bodyFile).Msg("failed to read body file")
		}
		text = string(content)
	}

	attachments, err := loadAttachments(attach)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read attachment")
	}

	var requestID string
	if *templateID != "" {
		requestID, err = submitter.SubmitTemplate(ctx, &submit.TemplateRequest{
			TemplateID:   *templateID,
			Lang:         *lang,
			Placeholders: placeholders,
			Blended:      *blended,
			From:         *from,
			To:           to,
			Cc:           cc,
			Bcc:          bcc,
			Attachments:  attachments,
			PatternID:    *patternID,
		})
	} else {
		requestID, err = submitter.Submit(ctx, &submit.Request{
			Subject:     *subject,
			From:        *from,
			Body:        text,
			To:          to,
			Cc:          cc,
			Bcc:         bcc,
			Attachments: attachments,
			PatternID:   *patternID,
		})
	}
	if err != nil {
		log.Fatal().Err(err).Msg("submission rejected")
	}

	fmt.Println(requestID)
}

func loadAttachments(paths []string) ([]submit.Attachment, error) {
	var attachments []submit.Attachment
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		attachments = append(attachments, submit.Attachment{
			Filename:    filepath.Base(path),
			ContentType: contentType,
			Content:     content,
		})
	}
	return attachments, nil
}
