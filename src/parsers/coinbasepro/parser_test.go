package coinbasepro

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/security"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/utils"
)

const accountID = "71452118-efc7-4cc4-8780-a5e22d4baa53"

func ledgerPage(from, count int) []map[string]interface{} {
	page := make([]map[string]interface{}, 0, count)
	for i := from; i < from+count; i++ {
		page = append(page, map[string]interface{}{
			"id":         fmt.Sprint(i),
			"amount":     "-1.5",
			"balance":    "100",
			"created_at": time.Date(2021, 1, 1, 0, 0, i, 0, time.UTC).Format(time.RFC3339Nano),
			"type":       "match",
			"details":    map[string]string{"order_id": "o" + fmt.Sprint(i), "trade_id": fmt.Sprint(i), "product_id": "BTC-EUR"},
		})
	}
	return page
}

func newTestParser(t *testing.T, handler http.HandlerFunc) *CoinbaseProParser {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	signer, err := security.NewExchangeSigner("key", base64.StdEncoding.EncodeToString([]byte("secret")), "pass")
	if err != nil {
		t.Fatalf("NewExchangeSigner: %v", err)
	}
	return NewParser(server.URL, server.Client(), utils.NewLimiter(0), signer)
}

func TestListAccounts(t *testing.T) {
	g := NewGomegaWithT(t)
	p := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
		g.Expect(r.URL.Path).To(Equal("/accounts"))
		g.Expect(r.Header.Get("CB-ACCESS-KEY")).To(Equal("key"))
		g.Expect(r.Header.Get("CB-ACCESS-SIGN")).NotTo(BeEmpty())
		g.Expect(r.Header.Get("CB-ACCESS-PASSPHRASE")).To(Equal("pass"))
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": accountID, "currency": "BTC", "balance": "0.25000000"},
		})
	})

	accounts, err := p.ListAccounts(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(accounts).To(HaveLen(1))
	g.Expect(accounts[0].ID).To(Equal(accountID))
	g.Expect(accounts[0].Currency).To(Equal("BTC"))
	g.Expect(accounts[0].Balance.String()).To(Equal("0.25"))
}

func TestListTransactionsFollowsCursor(t *testing.T) {
	g := NewGomegaWithT(t)
	var cursors []string
	p := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
		g.Expect(r.URL.Path).To(Equal("/accounts/" + accountID + "/ledger"))
		after := r.URL.Query().Get("after")
		cursors = append(cursors, after)
		switch after {
		case "":
			w.Header().Set("CB-AFTER", "c1")
			json.NewEncoder(w).Encode(ledgerPage(0, pageSize))
		case "c1":
			w.Header().Set("CB-AFTER", "c2")
			json.NewEncoder(w).Encode(ledgerPage(pageSize, 3))
		default:
			t.Errorf("Unexpected cursor %q", after)
		}
	})

	txs, err := p.ListTransactions(context.Background(), accountID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cursors).To(Equal([]string{"", "c1"}))
	g.Expect(txs).To(HaveLen(pageSize + 3))

	last := txs[len(txs)-1]
	g.Expect(last.AccountID).To(Equal(accountID))
	g.Expect(last.Type).To(Equal(models.TypeMatch))
	g.Expect(last.Amount.String()).To(Equal("-1.5"))
	g.Expect(last.OrderID).To(Equal("o102"))
	g.Expect(last.TradeID).To(Equal("102"))
	g.Expect(last.Completed()).To(BeTrue())
}

func TestListTransactionsStopsOnRepeatedCursor(t *testing.T) {
	g := NewGomegaWithT(t)
	calls := 0
	p := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("CB-AFTER", "same")
		json.NewEncoder(w).Encode(ledgerPage(0, pageSize))
	})

	txs, err := p.ListTransactions(context.Background(), accountID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(calls).To(Equal(2))
	g.Expect(txs).To(HaveLen(2 * pageSize))
}

func TestAPIErrorsPropagate(t *testing.T) {
	g := NewGomegaWithT(t)
	p := newTestParser(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid signature"}`, http.StatusUnauthorized)
	})

	_, err := p.ListAccounts(context.Background())
	g.Expect(err).To(MatchError(ContainSubstring("401")))
	g.Expect(p.Dialect()).NotTo(BeNil())
}
