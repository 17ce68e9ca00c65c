package subtitle

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"subseek/internal/language"
)

// fallbackEncoding decodes any byte sequence.
const fallbackEncoding = "iso-8859-1"

var encodings = map[string]encoding.Encoding{
	"utf-8":        xunicode.UTF8,
	"utf-8-sig":    xunicode.UTF8BOM,
	"utf-16-le":    xunicode.UTF16(xunicode.LittleEndian, xunicode.ExpectBOM),
	"utf-16-be":    xunicode.UTF16(xunicode.BigEndian, xunicode.ExpectBOM),
	"utf-32-le":    utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM),
	"utf-32-be":    utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM),
	"gb18030":      simplifiedchinese.GB18030,
	"gbk":          simplifiedchinese.GBK,
	"big5":         traditionalchinese.Big5,
	"shift-jis":    japanese.ShiftJIS,
	"euc-jp":       japanese.EUCJP,
	"iso-2022-jp":  japanese.ISO2022JP,
	"euc-kr":       korean.EUCKR,
	"windows-874":  charmap.Windows874,
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"windows-1253": charmap.Windows1253,
	"windows-1254": charmap.Windows1254,
	"windows-1255": charmap.Windows1255,
	"windows-1256": charmap.Windows1256,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"iso-8859-4":   charmap.ISO8859_4,
	"iso-8859-5":   charmap.ISO8859_5,
	"iso-8859-6":   charmap.ISO8859_6,
	"iso-8859-7":   charmap.ISO8859_7,
	"iso-8859-8":   charmap.ISO8859_8,
	"iso-8859-9":   charmap.ISO8859_9,
	"iso-8859-15":  charmap.ISO8859_15,
	"koi8-r":       charmap.KOI8R,
}

var aliases = map[string]string{
	"utf8":     "utf-8",
	"latin-1":  "iso-8859-1",
	"latin1":   "iso-8859-1",
	"cp1250":   "windows-1250",
	"cp1251":   "windows-1251",
	"cp1252":   "windows-1252",
	"cp1253":   "windows-1253",
	"cp1254":   "windows-1254",
	"cp1255":   "windows-1255",
	"cp1256":   "windows-1256",
	"sjis":     "shift-jis",
	"utf-16le": "utf-16-le",
	"utf-16be": "utf-16-be",
}

var boms = []struct {
	prefix []byte
	name   string
}{
	{[]byte{0xEF, 0xBB, 0xBF}, "utf-8-sig"},
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, "utf-32-be"},
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, "utf-32-le"},
	{[]byte{0xFE, 0xFF}, "utf-16-be"},
	{[]byte{0xFF, 0xFE}, "utf-16-le"},
}

// CanonicalEncoding normalises an encoding name, reporting whether it is
// supported.
func CanonicalEncoding(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if _, ok := encodings[key]; ok {
		return key, true
	}
	if _, err := htmlindex.Get(key); err == nil {
		return key, true
	}
	return "", false
}

func lookup(name string) (encoding.Encoding, error) {
	key, ok := CanonicalEncoding(name)
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	if enc, ok := encodings[key]; ok {
		return enc, nil
	}
	return htmlindex.Get(key)
}

// Decode converts content in the named encoding to a UTF-8 string.
func Decode(content []byte, name string) (string, error) {
	enc, err := lookup(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), nil
}

// Encode converts text to the named encoding.
func Encode(text, name string) ([]byte, error) {
	enc, err := lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return out, nil
}

// CandidateEncodings lists the encodings tried for lang after UTF-8 and any
// byte-order-mark match.
func CandidateEncodings(lang language.Language) []string {
	switch lang.Alpha3() {
	case "zho":
		return []string{"gb18030", "gbk", "big5"}
	case "jpn":
		return []string{"shift-jis", "euc-jp", "iso-2022-jp"}
	case "kor":
		return []string{"euc-kr"}
	case "tha":
		return []string{"windows-874"}
	case "ara", "fas":
		return []string{"windows-1256", "iso-8859-6"}
	case "heb":
		return []string{"windows-1255", "iso-8859-8"}
	case "tur":
		return []string{"windows-1254", "iso-8859-9"}
	case "ell":
		return []string{"windows-1253", "iso-8859-7"}
	case "pol", "ces", "slk", "hun", "bos", "hrv", "hsb", "ron":
		return []string{"windows-1250", "iso-8859-2"}
	case "slv":
		return []string{"windows-1250", "iso-8859-2", "iso-8859-4"}
	case "sqi":
		return []string{"windows-1250", "iso-8859-2", "windows-1252", "iso-8859-15", "iso-8859-1", "iso-8859-9"}
	case "bul", "mkd", "rus", "ukr", "bel":
		return []string{"windows-1251", "iso-8859-5", "koi8-r"}
	case "srp":
		return []string{"windows-1250", "windows-1251", "iso-8859-2", "iso-8859-5"}
	default:
		return []string{"windows-1252", "iso-8859-15", "iso-8859-9", "iso-8859-4", "iso-8859-1"}
	}
}

// GuessEncoding picks the first candidate that decodes content to printable
// text: UTF-8, then a byte-order-mark match, then the language's usual
// code pages. Latin-1 is the last resort.
func GuessEncoding(content []byte, lang language.Language) string {
	candidates := []string{"utf-8"}
	for _, bom := range boms {
		if bytes.HasPrefix(content, bom.prefix) {
			candidates = append(candidates, bom.name)
			break
		}
	}
	candidates = append(candidates, CandidateEncodings(lang)...)

	for _, name := range candidates {
		if name == "utf-8" && !utf8.Valid(content) {
			continue
		}
		text, err := Decode(content, name)
		if err != nil {
			continue
		}
		if printable(text) {
			return name
		}
	}
	return fallbackEncoding
}

func printable(text string) bool {
	for _, r := range text {
		switch r {
		case '\n', '\r', '\t':
			continue
		case utf8.RuneError:
			return false
		}
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
