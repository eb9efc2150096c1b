package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// zipOf builds an in-memory zip from name/content pairs in the given order.
func zipOf(t *testing.T, parts ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, p := range parts {
		fw, err := w.Create(p[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(p[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func wordBody(text string) string {
	return `<w:document><w:body><w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`
}

func slideBody(text string) string {
	return `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestExtractBytes(t *testing.T) {
	contentTypes := func(attrs string) string {
		return `<Types><Override ` + attrs + `/></Types>`
	}
	tests := []struct {
		name    string
		content []byte
		ext     string
		want    string
	}{
		{"plain", []byte("Lynparza enthält Olaparib.\nZeile 2"), ".txt", "Lynparza enthält Olaparib.\nZeile 2"},
		{"plain invalid utf8", []byte("Vorsorge\x80check"), ".md", "Vorsorge\uFFFDcheck"},
		{"plain strips bom", []byte("\xef\xbb\xbfKFE"), ".txt", "KFE"},
		{"unknown text extension", []byte("raw content"), ".xyz", "raw content"},
		{"uppercase extension", []byte("Gesundheits-Check"), ".TXT", "Gesundheits-Check"},
		{
			name:    "docx default body",
			content: zipOf(t, [2]string{"word/document.xml", wordBody("Krebsfrüherkennung rettet Leben")}),
			ext:     ".docx",
			want:    "Krebsfrüherkennung rettet Leben",
		},
		{
			name: "docx body from content types",
			content: zipOf(t,
				[2]string{"[Content_Types].xml", contentTypes(`PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"`)},
				[2]string{"word/document2.xml", wordBody("Inhalt aus document2")},
			),
			ext:  ".docx",
			want: "Inhalt aus document2",
		},
		{
			name: "docx content types reversed attributes",
			content: zipOf(t,
				[2]string{"[Content_Types].xml", contentTypes(`ContentType="` + docxMainContentType + `" PartName="/word/document3.xml"`)},
				[2]string{"word/document3.xml", wordBody("Reversed order")},
			),
			ext:  ".docx",
			want: "Reversed order",
		},
		{
			name:    "docx decodes entities",
			content: zipOf(t, [2]string{"word/document.xml", wordBody("Brust- &amp; Darmkrebs")}),
			ext:     ".docx",
			want:    "Brust- & Darmkrebs",
		},
		{
			name: "pptx slides in numeric order",
			content: zipOf(t,
				[2]string{"ppt/slides/slide10.xml", slideBody("Zehn")},
				[2]string{"ppt/slides/slide2.xml", slideBody("Zwei")},
				[2]string{"ppt/slides/slide1.xml", slideBody("Eins")},
			),
			ext:  ".pptx",
			want: "Eins Zwei Zehn",
		},
		{
			name:    "pptx without slides",
			content: zipOf(t, [2]string{"ppt/slides/other.xml", ""}, [2]string{"docProps/core.xml", ""}),
			ext:     ".pptx",
			want:    "",
		},
		{
			name:    "odp in document order",
			content: zipOf(t, [2]string{"content.xml", `<office:body><draw:page><text:h>Titel</text:h><text:p>Text</text:p></draw:page></office:body>`}),
			ext:     ".odp",
			want:    "Titel Text",
		},
		{
			name:    "ods cells",
			content: zipOf(t, [2]string{"content.xml", `<table:table-row><table:table-cell><text:p>Zelle A</text:p></table:table-cell><table:table-cell><text:p><text:span>Zelle B</text:span></text:p></table:table-cell></table:table-row>`}),
			ext:     ".ods",
			want:    "Zelle A Zelle B",
		},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_errors(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name    string
		content []byte
		ext     string
	}{
		{"pptx not zip", []byte("not a zip"), ".pptx"},
		{"docx not zip", []byte("not a zip"), ".docx"},
		{"odp content missing", zipOf(t, [2]string{"other.xml", ""}), ".odp"},
		{"ods content missing", zipOf(t, [2]string{"other.xml", ""}), ".ods"},
		{"docx body missing", zipOf(t, [2]string{"other.xml", ""}), ".docx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.ExtractBytes(tt.content, tt.ext); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExtractBytes_binaryUnsupported(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractBytes([]byte{0x89, 'P', 'N', 'G', 0x00, 0x01}, ".png")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Altersgruppe")
	_ = f.SetCellValue("Sheet1", "A2", "ab 18")
	_ = f.SetCellValue("Sheet1", "B2", "jährlich")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Altersgruppe\nab 18 | jährlich" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_excelSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Altersgruppe")
	_ = f.SetCellValue("Sheet1", "C3", "ab 18")
	if _, err := f.NewSheet("Kosten"); err != nil {
		t.Fatal(err)
	}
	_ = f.SetCellValue("Kosten", "B2", " kostenlos ")
	if _, err := f.NewSheet("Leer"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if want := "Sheet1:\nAltersgruppe\nab 18\n\nKosten:\nkostenlos"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_malformedPDF(t *testing.T) {
	for _, content := range []string{"", "%PDF-1.4\n1 0 obj\n<<", "not a pdf at all"} {
		if _, err := NewExtractor().ExtractBytes([]byte(content), ".pdf"); err == nil {
			t.Errorf("ExtractBytes(%q) should fail", content)
		}
	}
}

func TestExtract_files(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "info.txt")
	if err := os.WriteFile(txt, []byte("Datei Inhalt"), 0600); err != nil {
		t.Fatal(err)
	}
	deck := filepath.Join(dir, "deck.pptx")
	if err := os.WriteFile(deck, zipOf(t, [2]string{"ppt/slides/slide1.xml", slideBody("Aus Datei")}), 0600); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor()
	for path, want := range map[string]string{txt: "Datei Inhalt", deck: "Aus Datei"} {
		got, err := e.Extract(path)
		if err != nil {
			t.Fatalf("Extract(%s): %v", path, err)
		}
		if got != want {
			t.Errorf("Extract(%s) = %q, want %q", path, got, want)
		}
	}
	if _, err := e.Extract(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestExtensions(t *testing.T) {
	exts := NewExtractor().Extensions()
	if len(exts) == 0 || exts[0] != ".csv" {
		t.Errorf("Extensions() = %v", exts)
	}
}
