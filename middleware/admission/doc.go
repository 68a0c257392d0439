// Package admission fornece adapters HTTP (net/http e gin) para o filtro de admissão
// e para o limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: Pipeline (rate limit, depois classificação do user-agent) e ConcurrencyService
//   - infra: Tracker de janela deslizante, UserAgentClassifier, semáforo, stats
//   - admission (este pacote): middlewares + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (header/XFF/IP) e o user-agent
//  2. Pede a Decision ao pipeline
//  3. RateLimited responde 429, Forbidden responde 403, ambos em texto puro
//  4. Allow chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como ADMISSION_THRESHOLD, ADMISSION_WINDOW, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package admission
