package pdfstore

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeMailer struct {
	to      string
	paths   []string
	sendErr error
}

func (m *fakeMailer) SendFiles(_ context.Context, to, _, _ string, paths []string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.to = to
	m.paths = paths
	return nil
}

func newTestService(t *testing.T, mailer *fakeMailer) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir(), 1024, mailer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestValidateUpload(t *testing.T) {
	svc := newTestService(t, &fakeMailer{})

	cases := []struct {
		name     string
		filename string
		size     int64
		wantErr  error
	}{
		{"обычный pdf", "report.pdf", 100, nil},
		{"расширение в верхнем регистре", "Report.PDF", 100, nil},
		{"не pdf", "notes.txt", 100, ErrNotPDF},
		{"без расширения", "report", 100, ErrNotPDF},
		{"слишком большой", "big.pdf", 2048, ErrTooLarge},
		{"пустое имя", "  ", 100, ErrNotPDF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ValidateUpload(tc.filename, tc.size)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ValidateUpload(%q, %d): ожидали %v, получили %v", tc.filename, tc.size, tc.wantErr, err)
			}
		})
	}
}

func TestValidateUploadStripsPath(t *testing.T) {
	svc := newTestService(t, &fakeMailer{})

	safe, err := svc.ValidateUpload("../../etc/passwd.pdf", 10)
	if err != nil {
		t.Fatalf("ValidateUpload: %v", err)
	}
	if safe != "passwd.pdf" {
		t.Fatalf("ожидали имя без пути, получили %q", safe)
	}
}

func TestSaveAndList(t *testing.T) {
	svc := newTestService(t, &fakeMailer{})

	for _, name := range []string{"b.pdf", "a.pdf"} {
		if err := svc.Save(name, strings.NewReader("%PDF-1.4")); err != nil {
			t.Fatalf("Save(%q): %v", name, err)
		}
	}

	names, err := svc.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(names) != 2 || names[0] != "a.pdf" || names[1] != "b.pdf" {
		t.Fatalf("ожидали отсортированный список, получили %v", names)
	}
}

func TestSaveDuplicate(t *testing.T) {
	svc := newTestService(t, &fakeMailer{})

	if err := svc.Save("doc.pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := svc.Save("doc.pdf", strings.NewReader("x")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("ожидали ErrDuplicate, получили %v", err)
	}
}

func TestSaveOversizedRemovesPartial(t *testing.T) {
	svc := newTestService(t, &fakeMailer{})

	err := svc.Save("big.pdf", strings.NewReader(strings.Repeat("a", 4096)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ожидали ErrTooLarge, получили %v", err)
	}
	names, err := svc.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("частичный файл должен удаляться, получили %v", names)
	}
}

func TestPathUnknownFile(t *testing.T) {
	svc := newTestService(t, &fakeMailer{})

	if _, err := svc.Path("missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestEmail(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newTestService(t, mailer)

	if err := svc.Save("doc.pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := svc.Email(context.Background(), "user@example.com", []string{"doc.pdf"}); err != nil {
		t.Fatalf("Email: %v", err)
	}
	if mailer.to != "user@example.com" {
		t.Fatalf("письмо ушло не туда: %q", mailer.to)
	}
	if len(mailer.paths) != 1 || !strings.HasSuffix(mailer.paths[0], "doc.pdf") {
		t.Fatalf("неверные вложения: %v", mailer.paths)
	}
}

func TestEmailBadAddress(t *testing.T) {
	svc := newTestService(t, &fakeMailer{})

	err := svc.Email(context.Background(), "не адрес", []string{"doc.pdf"})
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("ожидали ErrInvalidEmail, получили %v", err)
	}
}

func TestEmailMissingFileNoSend(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newTestService(t, mailer)

	if err := svc.Save("a.pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	err := svc.Email(context.Background(), "user@example.com", []string{"a.pdf", "missing.pdf"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
	if mailer.to != "" {
		t.Fatalf("письмо не должно отправляться при отсутствующем файле")
	}
}
