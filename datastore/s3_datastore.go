package datastore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rowboatdb/rowboat/gologger"
	"github.com/rowboatdb/rowboat/utils"
	"github.com/rs/zerolog"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/source"
)

var logger = gologger.NewComponentLogger("datastore")

type (
	// S3DataStore downloads whole objects into memory buffers. Partition
	// files in this system are row-group sized, so buffering one is cheap
	// compared to chasing byte ranges.
	S3DataStore struct {
		bucket  string
		session *session.Session
	}
)

func NewS3DataStore(bucket string) (*S3DataStore, error) {
	s3Config := &aws.Config{
		Region:      aws.String(utils.AWS_DEFAULT_REGION),
		Credentials: credentials.NewEnvCredentials(),
	}
	if utils.S3_ENDPOINT != "" {
		s3Config.Endpoint = aws.String(utils.S3_ENDPOINT)
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}

	return &S3DataStore{
		bucket:  bucket,
		session: s3Session,
	}, nil
}

func (sds *S3DataStore) Open(ctx context.Context, locator string) (source.ParquetFile, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	downloader := s3manager.NewDownloader(sds.session)

	buf := &aws.WriteAtBuffer{}

	s := time.Now()
	_, err := downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(sds.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: error downloading from s3: %s", ErrSourceUnavailable, err)
	}

	d := time.Since(s)
	logger.Debug().Str("locator", locator).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Int("bytes", len(buf.Bytes())).Msg("downloaded partition file from s3")

	return buffer.NewBufferFileFromBytes(buf.Bytes()), nil
}

func (sds *S3DataStore) List(ctx context.Context, prefix string) ([]string, error) {
	client := s3.New(sds.session)

	var locators []string
	err := client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(sds.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			if strings.HasSuffix(*obj.Key, ".parquet") {
				locators = append(locators, *obj.Key)
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: error listing s3 objects: %s", ErrSourceUnavailable, err)
	}
	sort.Strings(locators)
	return locators, nil
}

func (sds *S3DataStore) Shutdown(_ context.Context) error {
	return nil
}
