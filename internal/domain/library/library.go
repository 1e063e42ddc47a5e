package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fairytales/internal/domain/story"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("story not found")

// SavedStory is a created story kept for replay and sharing.
type SavedStory struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Parts       []story.Part  `json:"parts"`
	Request     story.Request `json:"formData"`
	Interactive bool          `json:"isInteractive"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Archive keeps saved stories in a single JSON file, newest first.
type Archive struct {
	file string
	mu   sync.Mutex
}

type archiveData struct {
	Stories     []SavedStory `json:"stories"`
	LastUpdated time.Time    `json:"last_updated"`
}

// NewArchive creates an archive stored under dir
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{file: filepath.Join(dir, "stories.json")}, nil
}

// NewSavedStory prepares a story for the archive with a fresh id.
func NewSavedStory(req story.Request, parts []story.Part) SavedStory {
	return SavedStory{
		ID:          uuid.NewString(),
		Title:       req.Title(),
		Parts:       parts,
		Request:     req,
		Interactive: req.Interactive,
		CreatedAt:   time.Now(),
	}
}

func (a *Archive) load() (archiveData, error) {
	var data archiveData

	file, err := os.Open(a.file)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return data, fmt.Errorf("failed to decode archive: %w", err)
	}
	return data, nil
}

func (a *Archive) save(data archiveData) error {
	data.LastUpdated = time.Now()

	tmp := a.file + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, a.file)
}

// Save adds s, or replaces the stored story with the same id.
func (a *Archive) Save(s SavedStory) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := a.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range data.Stories {
		if data.Stories[i].ID == s.ID {
			data.Stories[i] = s
			replaced = true
			break
		}
	}
	if !replaced {
		data.Stories = append([]SavedStory{s}, data.Stories...)
	}

	if err := a.save(data); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"id":    s.ID,
		"parts": len(s.Parts),
	}).Debug("Saved story to archive")
	return nil
}

// List returns every saved story, newest first.
func (a *Archive) List() ([]SavedStory, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := a.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(data.Stories, func(i, j int) bool {
		return data.Stories[i].CreatedAt.After(data.Stories[j].CreatedAt)
	})
	return data.Stories, nil
}

// Find looks a story up by id or share link.
func (a *Archive) Find(ref string) (SavedStory, error) {
	id := ParseShareLink(ref)

	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := a.load()
	if err != nil {
		return SavedStory{}, err
	}
	for _, s := range data.Stories {
		if s.ID == id {
			return s, nil
		}
	}
	return SavedStory{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (a *Archive) Delete(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := a.load()
	if err != nil {
		return err
	}
	for i, s := range data.Stories {
		if s.ID == id {
			data.Stories = append(data.Stories[:i], data.Stories[i+1:]...)
			return a.save(data)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ShareLink is the address under which a story can be opened.
func ShareLink(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/story/" + id
}

// ParseShareLink extracts the story id from a share link; anything else is
// returned unchanged.
func ParseShareLink(ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "story" {
			return segments[i+1]
		}
	}
	return ref
}

// Info returns information about the archive file
func (a *Archive) Info() (map[string]interface{}, error) {
	info := make(map[string]interface{})

	stat, err := os.Stat(a.file)
	if err != nil {
		info["exists"] = false
		return info, nil
	}
	info["exists"] = true
	info["file"] = a.file
	info["size"] = stat.Size()
	info["last_modified"] = stat.ModTime()

	stories, err := a.List()
	if err != nil {
		return nil, err
	}
	info["stories"] = len(stories)
	return info, nil
}
