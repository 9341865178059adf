package friend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
	"github.com/tartampluch/go-friendcare/internal/config"
)

// ImportVCards decodes a vCard stream into friends with the contacts origin.
// Malformed cards are skipped so one bad entry does not lose the whole address book.
func ImportVCards(ctx context.Context, r io.Reader) ([]Friend, error) {
	log := slog.With(config.LogKeyComponent, config.CompFriend)
	decoder := vcard.NewDecoder(r)

	var friends []Friend
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
		}
		if err != nil {
			log.Warn(config.MsgSkippedCard, config.LogKeyError, err)
			continue
		}

		friends = append(friends, fromCard(card, log))
	}

	log.Info(config.MsgImported, config.LogKeyCount, len(friends))
	return friends, nil
}

func fromCard(card vcard.Card, log *slog.Logger) Friend {
	f := Friend{
		ID:     cardID(card),
		Name:   cardName(card),
		Origin: OriginContacts,
	}

	if tel := card.Get(config.VCardTEL); tel != nil {
		f.Phone = tel.Value
	}
	if note := card.Get(config.VCardNOTE); note != nil {
		f.Memo = note.Value
	}
	if photo := card.Get(config.VCardPHOTO); photo != nil && strings.HasPrefix(photo.Value, config.SchemeHTTP) {
		f.ImageURL = photo.Value
	}
	if cats := card.Get(config.VCardCATEGORIES); cats != nil {
		f.Category = strings.Split(cats.Value, ",")[0]
	}

	if bday := card.Get(config.VCardBDAY); bday != nil && bday.Value != "" {
		if d, err := ParseDate(bday.Value); err == nil {
			f.BirthDate = &d
		} else {
			log.Debug(config.MsgSkippedDate, config.LogKeyKey, config.VCardBDAY, config.LogKeyError, err)
		}
	}
	if anniv := card.Get(config.VCardANNIVERSARY); anniv != nil && anniv.Value != "" {
		if d, err := ParseDate(anniv.Value); err == nil {
			f.Anniversary = &Anniversary{Date: d}
		} else {
			log.Debug(config.MsgSkippedDate, config.LogKeyKey, config.VCardANNIVERSARY, config.LogKeyError, err)
		}
	}
	return f
}

// cardID keeps the vCard UID when present. Cards without one get a name-based
// uuid over their name and phone, so re-importing the same file yields the same ids.
func cardID(card vcard.Card) string {
	if uid := card.Get(config.VCardUID); uid != nil && uid.Value != "" {
		return strings.TrimPrefix(uid.Value, "urn:uuid:")
	}

	var tel string
	if t := card.Get(config.VCardTEL); t != nil {
		tel = t.Value
	}
	seed := config.ContactIDPrefix + cardName(card) + "\n" + tel
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}

// cardName prefers FN (formatted) over N (structured).
func cardName(card vcard.Card) string {
	if fn := card.Get(config.VCardFN); fn != nil && fn.Value != "" {
		return fn.Value
	}
	if n := card.Name(); n != nil {
		full := strings.TrimSpace(strings.Join([]string{n.GivenName, n.FamilyName}, " "))
		if full != "" {
			return full
		}
	}
	return config.FallbackName
}

// ParseDate handles the date layouts found in vCard BDAY and ANNIVERSARY fields.
// Dates without a year are pinned to a leap year so Feb 29 survives.
func ParseDate(value string) (time.Time, error) {
	withYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range withYear {
		if t, err := time.Parse(f, value); err == nil {
			return t, nil
		}
	}

	for _, f := range []string{config.DateFormatNoYearD, config.DateFormatNoYearB} {
		if t, err := time.Parse(f, value); err == nil {
			return time.Date(config.DefaultLeapYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("%s: %q", config.ErrDateParse, value)
}
