package qa

import (
	"testing"

	"github.com/kokkai-archive/kokkaid/models"
)

func TestShuListURL(t *testing.T) {
	f := &ShuFetcher{BaseURL: "https://www.shugiin.go.jp/internet"}

	modern := f.ListURL(213)
	if modern != "https://www.shugiin.go.jp/internet/itdb_shitsumon.nsf/html/shitsumon/kaiji213_l.htm" {
		t.Errorf("modern url = %s", modern)
	}
	// sessions before 148 live in the archive path
	old := f.ListURL(120)
	if old != "https://www.shugiin.go.jp/internet/itdb_shitsumona.nsf/html/shitsumon/kaiji120_l.htm" {
		t.Errorf("archive url = %s", old)
	}
}

const shuListPage = `<html><body>
<table id="shitsumontable">
<tr><th>番号</th><th>質問件名</th><th>提出者名</th><th>経過状況</th></tr>
<tr>
<td>1</td>
<td><a href="a213001.htm">物価高騰対策に関する質問主意書</a></td>
<td>山田太郎君</td>
<td>答弁受理</td>
</tr>
<tr>
<td>2</td>
<td>外交政策に関する質問主意書</td>
<td>鈴木花子君</td>
<td>質問受理</td>
</tr>
<tr>
<td>2</td>
<td><a href="itdb_shitsumon.nsf/html/shitsumon/a213002.htm">質問本文(PDF)への質問本文情報</a>
<a href="itdb_shitsumon.nsf/html/shitsumon/b213002.htm">答弁本文情報</a></td>
<td></td><td></td>
</tr>
</table>
</body></html>`

func TestParseShuList(t *testing.T) {
	out, err := ParseShuList(shuListPage, 213)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d questions", len(out))
	}
	q := out[0]
	if q.Chamber != models.ChamberShugiin || q.SessionID != 213 || q.Number != 1 {
		t.Errorf("identity: %+v", q)
	}
	if q.Subject != "物価高騰対策に関する質問主意書" {
		t.Errorf("subject = %q", q.Subject)
	}
	if q.Submitter != "山田太郎君" || q.Status != "答弁受理" {
		t.Errorf("submitter/status = %q/%q", q.Submitter, q.Status)
	}
	link := out[2]
	if link.QuestionURL == "" || link.AnswerURL == "" {
		t.Errorf("body links not captured: %+v", link)
	}
}

func TestParseShuListNoTable(t *testing.T) {
	if _, err := ParseShuList("<html><body></body></html>", 213); err == nil {
		t.Error("expected error when the question table is missing")
	}
}

const sanListPage = `<html><body>
<table class="list_c">
<tr><td colspan="3"><a class="Graylink" href="syuh/s213001.htm">エネルギー政策に関する質問主意書</a></td></tr>
<tr><th>1</th><td>令和6年1月30日</td><td>佐藤一郎君</td></tr>
<tr><td><a href="syuh/s213001.htm">質問本文（html）</a> <a href="touh/t213001.htm">答弁本文（html）</a></td></tr>
<tr><td colspan="3"><a class="Graylink" href="syuh/s213002.htm">子育て支援に関する質問主意書</a></td></tr>
<tr><th>2</th><td>令和6年2月2日</td><td>高橋二郎君</td></tr>
<tr><td><a href="syuh/s213002.htm">質問本文（html）</a></td></tr>
</table>
</body></html>`

func TestParseSanList(t *testing.T) {
	out, err := ParseSanList(sanListPage, 213)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d questions", len(out))
	}
	q := out[0]
	if q.Chamber != models.ChamberSangiin || q.Number != 1 {
		t.Errorf("identity: %+v", q)
	}
	if q.Subject != "エネルギー政策に関する質問主意書" {
		t.Errorf("subject = %q", q.Subject)
	}
	if q.Submitter != "佐藤一郎君" {
		t.Errorf("submitter = %q", q.Submitter)
	}
	if q.QuestionURL != "syuh/s213001.htm" || q.AnswerURL != "touh/t213001.htm" {
		t.Errorf("links: %+v", q)
	}
	if out[1].AnswerURL != "" {
		t.Error("unanswered question must not carry an answer link")
	}
}

func TestParseSanListNoTable(t *testing.T) {
	if _, err := ParseSanList("<html><body><table></table></body></html>", 213); err == nil {
		t.Error("expected error when the list_c table is missing")
	}
}
