package http

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"finmgr/internal/apiclient"
	"finmgr/internal/core"
	"finmgr/internal/log"
	"finmgr/internal/services"
)

const budgetsPath = "/financial-manager/budgets"

func budgetsKey(sessionID string) string { return services.SessionKeyPrefix(sessionID) + "budgets" }

type budgetsView struct {
	Budgets []core.Budget
	Totals  core.BudgetTotals
}

// listBudgets serves the session's budgets from cache when fresh.
func (s *Server) listBudgets(ctx context.Context, api *apiclient.AuthenticatedClient) ([]core.Budget, error) {
	key := budgetsKey(currentSession(ctx).ID)
	if cached, ok := s.budgets.Get(key); ok {
		log.FromContext(ctx).DebugContext(ctx, "Budgets cache hit", log.FieldComponent, log.ComponentCache)
		return append([]core.Budget(nil), cached...), nil
	}
	budgets, err := api.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}
	s.budgets.Set(key, budgets)
	return append([]core.Budget(nil), budgets...), nil
}

func (s *Server) invalidateBudgets(ctx context.Context) {
	s.budgets.Delete(budgetsKey(currentSession(ctx).ID))
}

func (s *Server) budgetsPage(w http.ResponseWriter, r *http.Request, errMsg string) {
	var view budgetsView
	budgets, err := s.listBudgets(r.Context(), s.backend(r))
	if err != nil && errMsg == "" {
		s.fail(w, r, err, "Failed to load budgets.", func(w http.ResponseWriter, r *http.Request, msg string) {
			s.render(w, r, "budgets.html", page{Title: "Budgets", Nav: "budgets", Error: msg, Data: view})
		})
		return
	}
	view = budgetsView{Budgets: budgets, Totals: core.SumBudgets(budgets)}
	s.render(w, r, "budgets.html", page{Title: "Budgets", Nav: "budgets", Error: errMsg, Data: view})
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	s.budgetsPage(w, r, "")
}

// budgetList answers a mutation: htmx gets the refreshed list partial,
// plain forms go back to the page.
func (s *Server) budgetList(w http.ResponseWriter, r *http.Request, notice string) {
	if !isHTMX(r) {
		http.Redirect(w, r, budgetsPath, http.StatusSeeOther)
		return
	}
	budgets, err := s.listBudgets(r.Context(), s.backend(r))
	if err != nil {
		s.fail(w, r, err, "Failed to load budgets.", nil)
		return
	}
	resp := NewHTMXResponse().
		TriggerChanged("budgets").
		TriggerFormReset().
		TriggerSuccessNotification(notice)
	s.renderPartial(w, r, resp, "budget_list", budgetsView{Budgets: budgets, Totals: core.SumBudgets(budgets)})
}

func parseBudgetForm(form url.Values) (core.Budget, error) {
	b := core.Budget{Category: FormValue(form, "category")}
	var err error
	if b.Allocated, err = core.ParseNonNegative(form.Get("allocated")); err != nil {
		return b, err
	}
	if v := form.Get("spent"); v != "" {
		if b.Spent, err = core.ParseNonNegative(v); err != nil {
			return b, err
		}
	} else {
		b.Spent = decimal.Zero
	}
	return b, b.Validate()
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	b, err := parseBudgetForm(r.Form)
	if err != nil {
		s.showError(w, r, http.StatusUnprocessableEntity, "Error creating budget. Please check the form data.", s.budgetsPage)
		return
	}
	if _, err := s.backend(r).CreateBudget(r.Context(), b); err != nil {
		s.fail(w, r, err, "Error creating budget. Please check the form data.", s.budgetsPage)
		return
	}
	s.invalidateBudgets(r.Context())
	s.budgetList(w, r, "Budget created")
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		s.showError(w, r, http.StatusBadRequest, "Invalid budget.", s.budgetsPage)
		return
	}
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	b, err := parseBudgetForm(r.Form)
	if err != nil {
		s.showError(w, r, http.StatusUnprocessableEntity, "Error updating budget. Please try again.", s.budgetsPage)
		return
	}
	b.ID = id
	if _, err := s.backend(r).UpdateBudget(r.Context(), b); err != nil {
		s.fail(w, r, err, "Error updating budget. Please try again.", s.budgetsPage)
		return
	}
	s.invalidateBudgets(r.Context())
	s.budgetList(w, r, "Budget updated")
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		s.showError(w, r, http.StatusBadRequest, "Invalid budget.", s.budgetsPage)
		return
	}
	if err := s.backend(r).DeleteBudget(r.Context(), id); err != nil {
		s.fail(w, r, err, "Error deleting budget.", s.budgetsPage)
		return
	}
	s.invalidateBudgets(r.Context())
	s.budgetList(w, r, "Budget deleted")
}
