// Package application contém os casos de uso do filtro de admissão e do limite
// de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Pipeline.Evaluate(cliente, user-agent, now) retorna uma Decision.
package application
