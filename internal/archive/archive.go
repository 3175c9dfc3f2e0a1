// Package archive ships ledger snapshots and per-ticket record files to
// object storage on a schedule, so the operator machines can be wiped
// without losing the processing history.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Uploader stores one object and returns its location.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Options configure the archiver. Bucket empty means archiving is off.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	Prefix    string
	Schedule  string // cron spec, e.g. "0 3 * * *"
}

// Archiver uploads the ledger file and the records directory.
type Archiver struct {
	uploader   Uploader
	ledgerPath string
	recordsDir string
	prefix     string
	schedule   string
	cron       *cron.Cron
}

// New builds an archiver backed by S3. Returns nil (no error) when no
// bucket is configured, so callers can treat archiving as optional.
func New(ctx context.Context, opts Options, ledgerPath, recordsDir string) (*Archiver, error) {
	if opts.Bucket == "" {
		return nil, nil
	}
	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Archiver{
		uploader:   &s3Uploader{client: client, bucket: opts.Bucket},
		ledgerPath: ledgerPath,
		recordsDir: recordsDir,
		prefix:     opts.Prefix,
		schedule:   opts.Schedule,
	}, nil
}

func newS3Client(ctx context.Context, opts Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: opts.PathStyle,
					SigningRegion:     opts.Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
	}), nil
}

// Start schedules RunOnce on the configured cron spec. No-op on a nil
// archiver or an empty schedule.
func (a *Archiver) Start(ctx context.Context) error {
	if a == nil || a.schedule == "" {
		return nil
	}
	a.cron = cron.New()
	_, err := a.cron.AddFunc(a.schedule, func() {
		if err := a.RunOnce(ctx); err != nil {
			logrus.Errorf("scheduled archive failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule archive %q: %w", a.schedule, err)
	}
	a.cron.Start()
	logrus.WithField("schedule", a.schedule).Info("archiver scheduled")
	return nil
}

// Stop halts the schedule and waits for a running upload to finish.
func (a *Archiver) Stop() {
	if a == nil || a.cron == nil {
		return
	}
	<-a.cron.Stop().Done()
}

// RunOnce uploads one ledger snapshot plus every record file currently on
// disk. Record files are removed after a successful upload; the ledger
// file stays, snapshots are additive.
func (a *Archiver) RunOnce(ctx context.Context) error {
	if a == nil {
		return nil
	}
	stamp := time.Now().Format("20060102-150405")

	data, err := os.ReadFile(a.ledgerPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read ledger for archive: %w", err)
	}
	if err == nil {
		key := a.key("ledger", fmt.Sprintf("ledger-%s.json", stamp))
		loc, err := a.uploader.Upload(ctx, key, data, "application/json")
		if err != nil {
			return fmt.Errorf("upload ledger snapshot: %w", err)
		}
		logrus.WithField("location", loc).Info("ledger snapshot archived")
	}

	names, err := os.ReadDir(a.recordsDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list records dir: %w", err)
	}
	uploaded := 0
	for _, e := range names {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(a.recordsDir, e.Name())
		body, err := os.ReadFile(path)
		if err != nil {
			logrus.Errorf("read record %s: %v", path, err)
			continue
		}
		if _, err := a.uploader.Upload(ctx, a.key("records", e.Name()), body, "text/plain; charset=utf-8"); err != nil {
			return fmt.Errorf("upload record %s: %w", e.Name(), err)
		}
		if err := os.Remove(path); err != nil {
			logrus.Errorf("remove archived record %s: %v", path, err)
		}
		uploaded++
	}
	if uploaded > 0 {
		logrus.WithField("count", uploaded).Info("record files archived")
	}
	return nil
}

func (a *Archiver) key(parts ...string) string {
	if a.prefix != "" {
		parts = append([]string{a.prefix}, parts...)
	}
	return filepath.ToSlash(filepath.Join(parts...))
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func (s *s3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
