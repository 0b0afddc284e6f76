package pdfstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aiclub-bot/internal/domain"
)

var (
	// ErrNotPDF возвращается для файлов без расширения .pdf.
	ErrNotPDF = errors.New("принимаются только файлы .pdf")
	// ErrTooLarge возвращается, если файл превышает допустимый размер.
	ErrTooLarge = errors.New("файл слишком большой")
	// ErrDuplicate возвращается, если файл с таким именем уже сохранён.
	ErrDuplicate = errors.New("файл с таким именем уже существует")
	// ErrNotFound возвращается, если запрошенный файл отсутствует.
	ErrNotFound = errors.New("файл не найден")
	// ErrInvalidEmail возвращается при некорректном адресе получателя.
	ErrInvalidEmail = errors.New("некорректный адрес почты")
)

// Service хранит присланные PDF на диске и отправляет их почтой.
type Service struct {
	dir      string
	maxBytes int64
	mailer   domain.Mailer
}

// NewService создаёт хранилище в каталоге dir, создавая его при необходимости.
func NewService(dir string, maxBytes int64, mailer domain.Mailer) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("создание каталога %s: %w", dir, err)
	}
	return &Service{dir: dir, maxBytes: maxBytes, mailer: mailer}, nil
}

// MaxBytes возвращает предел размера файла.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// ValidateUpload проверяет имя и размер до скачивания и возвращает
// безопасное имя без компонентов пути.
func (s *Service) ValidateUpload(filename string, size int64) (string, error) {
	safe := filepath.Base(strings.TrimSpace(filename))
	if safe == "." || safe == string(filepath.Separator) || safe == "" {
		return "", ErrNotPDF
	}
	if !strings.EqualFold(filepath.Ext(safe), ".pdf") {
		return "", ErrNotPDF
	}
	if size > s.maxBytes {
		return "", fmt.Errorf("%w: предел %d байт", ErrTooLarge, s.maxBytes)
	}
	if _, err := os.Stat(filepath.Join(s.dir, safe)); err == nil {
		return "", ErrDuplicate
	}
	return safe, nil
}

// Save записывает содержимое под безопасным именем из ValidateUpload.
// Повторная проверка размера защищает от источника, соврать о размере
// которому ничего не стоит.
func (s *Service) Save(safeName string, r io.Reader) error {
	path := filepath.Join(s.dir, safeName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("создание файла: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return err
		}
		return fmt.Errorf("запись файла: %w", err)
	}
	return nil
}

// ListFiles возвращает имена сохранённых PDF в алфавитном порядке.
func (s *Service) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("чтение каталога: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Path возвращает путь к сохранённому файлу по имени.
func (s *Service) Path(filename string) (string, error) {
	safe := filepath.Base(strings.TrimSpace(filename))
	path := filepath.Join(s.dir, safe)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, safe)
	}
	return path, nil
}

// Email отправляет перечисленные файлы на адрес получателя. Все файлы
// проверяются до отправки: письмо либо уходит целиком, либо не уходит.
func (s *Service) Email(ctx context.Context, address string, filenames []string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(address)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, address)
	}
	paths := make([]string, 0, len(filenames))
	for _, name := range filenames {
		path, err := s.Path(name)
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}
	subject := "Документы клуба"
	body := fmt.Sprintf("Во вложении %d файл(ов) из архива клуба.", len(paths))
	if err := s.mailer.SendFiles(ctx, strings.TrimSpace(address), subject, body, paths); err != nil {
		return fmt.Errorf("отправка письма: %w", err)
	}
	return nil
}
