package handlers

import (
	"net/http"

	"github.com/diread/diread/internal/handlers/middleware"
	"github.com/diread/diread/internal/logger"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	bookService bookService,
	log logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	apiv1 := http.NewServeMux()
	apiv1.Handle("/auth/", http.StripPrefix("/auth", NewAuth(authService).Handler()))
	apiv1.Handle("/users/", http.StripPrefix("/users", withAuth(NewUser(userService).Handler())))

	books := NewBook(bookService).Handler()
	apiv1.Handle("/books/", withAuth(books))
	apiv1.Handle("/books", withAuth(books))
	apiv1.Handle("/bookmarks/", withAuth(books))
	apiv1.Handle("/highlights/", withAuth(books))

	root := http.NewServeMux()
	root.Handle("/api/v1/", http.StripPrefix("/api/v1", apiv1))
	root.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	handler := chain(root,
		middleware.LoggerMiddleware(log),
	)

	return handler
}
