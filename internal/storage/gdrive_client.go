package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveExporter uploads completed summaries to Google Drive
type DriveExporter struct {
	service    *drive.Service
	folderName string
	folderID   string

	mu sync.Mutex // serializes folder lookups so two jobs never create twin folders
}

// NewDriveExporter creates a Drive client from an OAuth client file and a saved token.
// The token must already exist; there is no interactive consent flow in the server.
func NewDriveExporter(ctx context.Context, credentialsFile, tokenFile, folderName string) (*DriveExporter, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read token file %s: %w", tokenFile, err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	de := &DriveExporter{
		service:    srv,
		folderName: folderName,
	}
	if err := de.ensureFolder(ctx); err != nil {
		return nil, err
	}
	return de, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func (de *DriveExporter) Name() string { return "gdrive" }

// Export uploads the markdown summary and its metadata into a dated folder
func (de *DriveExporter) Export(ctx context.Context, rec *types.JobRecord) error {
	now := time.Now()
	folderID, err := de.ensureDateFolder(ctx, now)
	if err != nil {
		return err
	}

	baseFilename := exportBaseName(now, rec)

	mdFile := &drive.File{
		Name:     baseFilename + ".md",
		MimeType: "text/markdown",
		Parents:  []string{folderID},
	}
	if _, err := de.service.Files.Create(mdFile).
		Media(strings.NewReader(RenderMarkdown(rec))).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to upload summary: %w", err)
	}

	metaJSON, err := exportMetadata(rec)
	if err != nil {
		return err
	}
	metaFile := &drive.File{
		Name:    baseFilename + "_meta.json",
		Parents: []string{folderID},
	}
	if _, err := de.service.Files.Create(metaFile).
		Media(bytes.NewReader(metaJSON)).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to upload metadata: %w", err)
	}
	return nil
}

// ensureFolder finds or creates the root folder
func (de *DriveExporter) ensureFolder(ctx context.Context) error {
	id, err := de.findOrCreateFolder(ctx, de.folderName, "")
	if err != nil {
		return fmt.Errorf("unable to prepare folder %q: %w", de.folderName, err)
	}
	de.folderID = id
	return nil
}

// ensureDateFolder creates nested year/month/day folders
func (de *DriveExporter) ensureDateFolder(ctx context.Context, t time.Time) (string, error) {
	de.mu.Lock()
	defer de.mu.Unlock()

	parent := de.folderID
	for _, name := range []string{
		fmt.Sprintf("%d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
	} {
		id, err := de.findOrCreateFolder(ctx, name, parent)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

// findOrCreateFolder finds or creates a folder; an empty parentID means the Drive root
func (de *DriveExporter) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false",
		escapeQuery(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	r, err := de.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	file, err := de.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
