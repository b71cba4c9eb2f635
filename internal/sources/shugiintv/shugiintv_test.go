package shugiintv

import (
	"testing"
	"time"

	"github.com/kokkai-archive/kokkaid/models"
)

const listPage = `<html><body>
<a href="index.php?ex=VL&deli_id=54321&media_type=">予算委員会</a>
<a href="index.php?ex=VL&deli_id=54322&media_type=">法務委員会</a>
<a href="index.php?ex=VL&deli_id=54321&media_type=wb">予算委員会(低速)</a>
<a href="index.php?ex=VL">一覧へ戻る</a>
</body></html>`

func TestParseDeliIDs(t *testing.T) {
	ids := ParseDeliIDs(listPage)
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want two unique ids", ids)
	}
	if ids[0] != "54321" || ids[1] != "54322" {
		t.Errorf("ids = %v, want first-seen order", ids)
	}
}

const detailPage = `<html><body>
<div id="library"><table>
<tr><td></td><td>開会日</td><td></td><td>2024年5月14日 (火)</td></tr>
<tr><td></td><td>会議名</td><td></td><td>予算委員会 (第10回)</td></tr>
</table></div>
<div id="library2">
<table>
<tr><td>案件：</td></tr>
<tr><td>令和6年度一般会計補正予算</td></tr>
<tr><td>令和6年度特別会計補正予算</td></tr>
</table>
<table>
<tr><td><a class="play_vod" href="#">小野寺五典（委員長）</a></td></tr>
<tr><td><a class="play_vod" href="#">岸田文雄（内閣総理大臣）</a></td></tr>
<tr><td><a class="play_vod" href="#">小野寺五典（委員長）</a></td></tr>
</table>
</div>
</body></html>`

func TestParseDetailHTML(t *testing.T) {
	seg, err := ParseDetailHTML(detailPage, "https://example.test/index.php?ex=VL&deli_id=54321", "54321")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if seg.SegmentID != "54321" || seg.Chamber != models.ChamberShugiin {
		t.Errorf("identity fields: %+v", seg)
	}
	if !seg.BroadcastDate.Equal(time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("broadcast date = %s", seg.BroadcastDate)
	}
	if seg.Committee != "予算委員会" {
		t.Errorf("committee = %q, want suffix trimmed", seg.Committee)
	}
	if len(seg.Topics) != 2 {
		t.Errorf("topics = %v", seg.Topics)
	}
	if len(seg.Speakers) != 2 {
		t.Errorf("speakers should be deduplicated: %v", seg.Speakers)
	}
}

func TestParseDetailHTMLMissingFields(t *testing.T) {
	noDate := `<html><body><div id="library"><table>
<tr><td></td><td>会議名</td><td></td><td>予算委員会</td></tr>
</table></div></body></html>`
	if _, err := ParseDetailHTML(noDate, "", "1"); err == nil {
		t.Error("expected error for missing 開会日")
	}

	noName := `<html><body><div id="library"><table>
<tr><td></td><td>開会日</td><td></td><td>2024年5月14日 (火)</td></tr>
</table></div></body></html>`
	if _, err := ParseDetailHTML(noName, "", "1"); err == nil {
		t.Error("expected error for missing 会議名")
	}
}

func TestTrimMeetingSuffix(t *testing.T) {
	tests := []struct{ in, want string }{
		{"予算委員会 (第10回)", "予算委員会"},
		{"本会議", "本会議"},
		{" 法務委員会 ", "法務委員会"},
	}
	for _, tt := range tests {
		if got := trimMeetingSuffix(tt.in); got != tt.want {
			t.Errorf("trimMeetingSuffix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
